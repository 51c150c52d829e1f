// Package token abstracts the vendor's channel token service. The signing
// scheme is an opaque vendor HMAC format that must match the native engine
// byte-exactly, so it is never reimplemented here: deployments either link a
// Builder backed by the vendor library or mint tokens out of process and hand
// them in through StaticBuilder.
package token

import "fmt"

// Role restricts what the token holder may do in the channel.
type Role int

const (
	RolePublisher  Role = 1
	RoleSubscriber Role = 2
)

// Builder mints a join token for one channel/account pair. Implementations
// are treated as pure functions of their arguments.
type Builder interface {
	BuildToken(appID, certificate, channel, account string, role Role, expireAt uint32) (string, error)
}

// BuilderFunc adapts a plain function to the Builder interface.
type BuilderFunc func(appID, certificate, channel, account string, role Role, expireAt uint32) (string, error)

func (f BuilderFunc) BuildToken(appID, certificate, channel, account string, role Role, expireAt uint32) (string, error) {
	return f(appID, certificate, channel, account, role, expireAt)
}

// StaticBuilder returns a pre-minted token regardless of arguments, for
// deployments where the token service runs out of process.
type StaticBuilder struct {
	Token string
}

func (b StaticBuilder) BuildToken(string, string, string, string, Role, uint32) (string, error) {
	if b.Token == "" {
		return "", fmt.Errorf("token: static builder has no token configured")
	}
	return b.Token, nil
}

// Insecure returns an empty token, valid only against engines running with
// certificate checks disabled. Useful in development.
type Insecure struct{}

func (Insecure) BuildToken(string, string, string, string, Role, uint32) (string, error) {
	return "", nil
}
