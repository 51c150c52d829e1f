package redis

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Pings are sent on the subscribed connection with this period; the read
// timeout is derived from it so a dead server surfaces as a receive error.
const healthCheckPeriod = time.Minute

type PubSub struct {
	network  string
	address  string
	password string
	psc      redis.PubSubConn
}

func NewPubSub(network, address, password string) (*PubSub, error) {
	p := &PubSub{
		network:  network,
		address:  address,
		password: password,
	}

	// Fail fast if the server is unreachable.
	conn, err := p.dial()
	if err != nil {
		return nil, err
	}
	_ = conn.Close()

	return p, nil
}

func (p *PubSub) dial() (redis.Conn, error) {
	return redis.Dial(p.network, p.address,
		redis.DialReadTimeout(healthCheckPeriod+10*time.Second),
		redis.DialWriteTimeout(10*time.Second),
		redis.DialPassword(p.password))
}

// ListenChannels subscribes to channels and blocks, invoking onMessage for
// every published message. onStart fires once all subscriptions are
// confirmed. The call returns when ctx is cancelled, a handler errors, or the
// connection dies.
func (p *PubSub) ListenChannels(ctx context.Context,
	onStart func() error,
	onMessage func(channel string, data []byte) error,
	channels ...string) error {

	c, err := p.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	p.psc = redis.PubSubConn{Conn: c}

	if err := p.psc.Subscribe(redis.Args{}.AddFlat(channels)...); err != nil {
		return err
	}

	done := make(chan error, 1)

	go func() {
		done <- p.receiveLoop(onStart, onMessage, len(channels))
	}()

	ticker := time.NewTicker(healthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A lost pong times out the read and ends the receive loop.
			if err := p.psc.Ping(""); err != nil {
				return p.drain(done)
			}
		case <-ctx.Done():
			return p.drain(done)
		case err := <-done:
			return err
		}
	}
}

func (p *PubSub) receiveLoop(onStart func() error, onMessage func(string, []byte) error, subscribed int) error {
	for {
		switch n := p.psc.Receive().(type) {
		case error:
			return n
		case redis.Message:
			if err := onMessage(n.Channel, n.Data); err != nil {
				return err
			}
		case redis.Subscription:
			switch n.Count {
			case subscribed:
				if err := onStart(); err != nil {
					return err
				}
			case 0:
				// All channels unsubscribed.
				return nil
			}
		}
	}
}

// drain unsubscribes everything so the receive loop unblocks, then waits for
// its exit status.
func (p *PubSub) drain(done chan error) error {
	if err := p.psc.Unsubscribe(); err != nil {
		return err
	}

	return <-done
}

func (p *PubSub) Check() error {
	c, err := p.dial()

	if err != nil {
		return err
	}

	defer c.Close()

	if _, err = c.Do("PING"); err != nil {
		return err
	}

	return nil
}

func (p *PubSub) Publish(channel string, message []byte) error {
	c, err := p.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err = c.Do("PUBLISH", channel, message); err != nil {
		return err
	}

	return nil
}
