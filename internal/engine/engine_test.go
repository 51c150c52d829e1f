package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	binaryDir string
}

func (stubEngine) SetLogLevel(LogLevel) error    { return nil }
func (stubEngine) Subscribe(Handler)             {}
func (stubEngine) JoinChannel(JoinRequest) error { return nil }
func (stubEngine) SetMixLayout(MixLayout) error  { return nil }
func (stubEngine) LeaveChannel() error           { return nil }
func (stubEngine) Release() error                { return nil }

func init() {
	Register("stub", func(binaryDir string) (Engine, error) {
		return stubEngine{binaryDir: binaryDir}, nil
	})
}

func TestOpen(t *testing.T) {
	eng, err := Open("stub", "/opt/vendor/lib")
	require.NoError(t, err)

	stub, ok := eng.(stubEngine)
	require.True(t, ok)
	assert.Equal(t, "/opt/vendor/lib", stub.binaryDir)
}

func TestOpen_UnknownDriver(t *testing.T) {
	eng, err := Open("no-such-driver", "")
	assert.Nil(t, eng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestDrivers(t *testing.T) {
	assert.Contains(t, Drivers(), "stub")
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("stub", func(string) (Engine, error) { return stubEngine{}, nil })
	})
}

func TestRegister_NilPanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("nil-driver", nil)
	})
}
