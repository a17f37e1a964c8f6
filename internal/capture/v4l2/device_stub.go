//go:build !(linux && (amd64 || arm64))

package v4l2

import (
	"context"
	"time"

	"dotsnatch-go/internal/capture"
)

type Device struct{}

func Open(string, time.Duration) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) Configure(capture.Format) (capture.Format, error) {
	return capture.Format{}, ErrUnsupported
}

func (d *Device) AllocateBuffers(int) ([][]byte, error) { return nil, ErrUnsupported }
func (d *Device) Arm(int) error                          { return ErrUnsupported }
func (d *Device) StartStreaming() error                  { return ErrUnsupported }
func (d *Device) Release(int) error                      { return ErrUnsupported }
func (d *Device) Teardown() error                        { return nil }

func (d *Device) AcquireNext(context.Context) (int, int, error) {
	return 0, 0, ErrUnsupported
}
