// Package capture drives a single capture device through its buffer lifecycle.
package capture

import (
	"context"
	"errors"

	"dotsnatch-go/internal/frame"
)

// BufferCount buffers let the device fill one while the caller reads the other.
const BufferCount = 2

var (
	ErrDeviceConfig = errors.New("device rejected format")
	ErrBufferAlloc  = errors.New("buffer allocation failed")
	ErrQueue        = errors.New("buffer queue failed")
	ErrStreamStart  = errors.New("stream start failed")
	ErrAcquire      = errors.New("frame acquisition failed")
	ErrState        = errors.New("invalid capture state")
)

// Format is a requested or negotiated capture format.
type Format struct {
	Pixels   frame.PixelFormat
	Encoding frame.Encoding
}

// Device is the contract a capture backend implements. Buffers returned by
// AllocateBuffers stay owned by the device until Teardown.
type Device interface {
	Configure(req Format) (Format, error)
	AllocateBuffers(count int) ([][]byte, error)
	Arm(index int) error
	StartStreaming() error
	// AcquireNext blocks until a buffer is filled and returns its index and the
	// number of valid bytes.
	AcquireNext(ctx context.Context) (index int, length int, err error)
	Release(index int) error
	Teardown() error
}
