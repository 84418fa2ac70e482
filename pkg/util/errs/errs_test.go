package errs

import (
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSilent(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewSilentErr("bad packet %d", 1))
	assert.True(t, IsSilent(err))
	assert.Equal(t, "outer: bad packet 1", err.Error())
	assert.False(t, IsSilent(io.EOF))
	assert.Nil(t, WrapSilent(nil))
}

func TestIsConnClosedErr(t *testing.T) {
	assert.True(t, IsConnClosedErr(fmt.Errorf("read: %w", net.ErrClosed)))
	assert.True(t, IsConnClosedErr(io.EOF))
	assert.False(t, IsConnClosedErr(nil))
	assert.False(t, IsConnClosedErr(fmt.Errorf("boom")))
}
