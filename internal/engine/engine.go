// Package engine defines the capability surface of the native recording
// engine. The engine itself is a closed-source binding; concrete
// implementations register themselves as drivers (usually from a build-tagged
// package that links the vendor SDK) and are selected by name.
package engine

import (
	"fmt"
	"sort"
	"sync"
)

// LogLevel is a verbosity hint passed through to the native engine unchanged.
type LogLevel int

const (
	LogLevelDefault LogLevel = 0
	LogLevelDebug   LogLevel = 1
	LogLevelError   LogLevel = 4
)

// MixLayout describes the composited output layout. The fields mirror the
// native layout descriptor and are forwarded as-is.
type MixLayout struct {
	CanvasWidth  int         `json:"canvasWidth"`
	CanvasHeight int         `json:"canvasHeight"`
	MixedMode    int         `json:"mixedVideoLayout"`
	MaxResUID    string      `json:"maxResolutionUid,omitempty"`
	Background   string      `json:"backgroundColor,omitempty"`
	Regions      []MixRegion `json:"regions,omitempty"`
}

type MixRegion struct {
	UID    string  `json:"uid"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Alpha  float64 `json:"alpha"`
	ZOrder int     `json:"zOrder"`
}

// JoinRequest carries everything the native engine needs to attach to a
// channel. CfgPath points at the hand-off file naming the recording directory.
type JoinRequest struct {
	AppID     string
	Token     string
	Channel   string
	Account   string
	BinaryDir string
	CfgPath   string
}

// Handler receives normalized engine events. Handlers run on the engine's
// callback goroutine and must not block.
type Handler func(Event)

// Engine is one live handle to the native recording engine. Exactly one
// handle exists per session; calls must follow the partial order
// Subscribe* -> JoinChannel -> (SetMixLayout)* -> LeaveChannel -> Release.
// Concurrent control calls are undefined behavior; the session layer
// serializes them.
type Engine interface {
	// SetLogLevel forwards a verbosity hint to the native engine.
	SetLogLevel(level LogLevel) error

	// Subscribe installs the handler for every callback kind the engine
	// emits. It must be called before JoinChannel so that no callback can
	// fire without an installed handler.
	Subscribe(h Handler)

	// JoinChannel submits an asynchronous join request. It never reports
	// the join outcome itself; the outcome arrives as a KindJoinSuccess or
	// KindEngineError event.
	JoinChannel(req JoinRequest) error

	// SetMixLayout forwards a layout descriptor. Only meaningful once the
	// engine has joined.
	SetMixLayout(layout MixLayout) error

	// LeaveChannel signals the engine to stop publishing. Must precede
	// Release or in-flight callbacks may be lost.
	LeaveChannel() error

	// Release frees the handle. The handle must not be used afterward.
	Release() error
}

// Driver creates engine handles. BinaryDir points at the directory holding
// the vendor's loadable module.
type Driver func(binaryDir string) (Engine, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes an engine driver available under the given name. It panics
// on duplicate registration, same as database/sql.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("engine: Register driver is nil")
	}

	if _, dup := drivers[name]; dup {
		panic(fmt.Sprintf("engine: Register called twice for driver %s", name))
	}

	drivers[name] = d
}

// Open instantiates an engine handle using the named driver.
func Open(name, binaryDir string) (Engine, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine: unknown driver %q (registered: %v)", name, Drivers())
	}

	return d(binaryDir)
}

// Drivers returns the names of the registered drivers, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
