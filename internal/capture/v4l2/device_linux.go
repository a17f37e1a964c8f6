//go:build linux && (amd64 || arm64)

package v4l2

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"dotsnatch-go/internal/capture"
	"dotsnatch-go/internal/frame"
)

// Request codes and struct layouts for 64-bit Linux, from linux/videodev2.h.
const (
	vidiocSFmt      = 0xc0d05605
	vidiocReqBufs   = 0xc0145608
	vidiocQueryBuf  = 0xc0585609
	vidiocQBuf      = 0xc058560f
	vidiocDQBuf     = 0xc0585611
	vidiocStreamOn  = 0x40045612
	vidiocStreamOff = 0x40045613

	bufTypeVideoCapture = 1
	memoryMMap          = 1
	fieldNone           = 1
)

type pixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YCbCrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

type format struct {
	Type uint32
	_    uint32
	Pix  pixFormat
	_    [200 - 48]byte
}

type requestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	_            [3]uint8
}

type timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	UserBits [4]uint8
}

type buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	_         uint32
	Timestamp unix.Timeval
	Timecode  timecode
	Sequence  uint32
	Memory    uint32
	Offset    uint64
	Length    uint32
	Reserved2 uint32
	RequestFD int32
	_         uint32
}

// Device is a V4L2 capture node opened non-blocking; AcquireNext waits in poll.
type Device struct {
	path    string
	timeout time.Duration
	fd      int
	mapped  [][]byte
}

func Open(path string, timeout time.Duration) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{path: path, timeout: timeout, fd: fd}, nil
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

func (d *Device) Configure(req capture.Format) (capture.Format, error) {
	pixfmt, ok := pixelFormatFor(req.Encoding)
	if !ok {
		return capture.Format{}, fmt.Errorf("unsupported encoding %s", req.Encoding)
	}
	f := format{Type: bufTypeVideoCapture}
	f.Pix.Width = uint32(req.Pixels.Width)
	f.Pix.Height = uint32(req.Pixels.Height)
	f.Pix.PixelFormat = pixfmt
	f.Pix.Field = fieldNone
	if err := d.ioctl(vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return capture.Format{}, fmt.Errorf("VIDIOC_S_FMT on %s: %w", d.path, err)
	}
	enc, ok := encodingFor(f.Pix.PixelFormat)
	if !ok {
		return capture.Format{}, fmt.Errorf("driver selected unsupported pixel format %#x", f.Pix.PixelFormat)
	}
	return capture.Format{
		Pixels:   frame.PixelFormat{Width: int(f.Pix.Width), Height: int(f.Pix.Height)},
		Encoding: enc,
	}, nil
}

func (d *Device) AllocateBuffers(count int) ([][]byte, error) {
	rb := requestBuffers{Count: uint32(count), Type: bufTypeVideoCapture, Memory: memoryMMap}
	if err := d.ioctl(vidiocReqBufs, unsafe.Pointer(&rb)); err != nil {
		return nil, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	if int(rb.Count) < count {
		return nil, fmt.Errorf("driver granted %d of %d buffers", rb.Count, count)
	}
	for i := 0; i < count; i++ {
		qb := buffer{Index: uint32(i), Type: bufTypeVideoCapture, Memory: memoryMMap}
		if err := d.ioctl(vidiocQueryBuf, unsafe.Pointer(&qb)); err != nil {
			d.unmap()
			return nil, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}
		mem, err := unix.Mmap(d.fd, int64(uint32(qb.Offset)), int(qb.Length), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			d.unmap()
			return nil, fmt.Errorf("mmap buffer %d: %w", i, err)
		}
		d.mapped = append(d.mapped, mem)
	}
	return d.mapped, nil
}

func (d *Device) queue(index int) error {
	qb := buffer{Index: uint32(index), Type: bufTypeVideoCapture, Memory: memoryMMap}
	if err := d.ioctl(vidiocQBuf, unsafe.Pointer(&qb)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

func (d *Device) Arm(index int) error {
	return d.queue(index)
}

func (d *Device) StartStreaming() error {
	bufType := int32(bufTypeVideoCapture)
	if err := d.ioctl(vidiocStreamOn, unsafe.Pointer(&bufType)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	return nil
}

// AcquireNext waits in poll, not a spin, so the calling goroutine sleeps until
// the driver signals a filled buffer, the timeout expires or ctx is done.
func (d *Device) AcquireNext(ctx context.Context) (int, int, error) {
	deadline := time.Now().Add(d.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, 0, fmt.Errorf("no frame from %s within %s", d.path, d.timeout)
		}
		wait := remaining
		if wait > 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}
		fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(wait/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, 0, fmt.Errorf("poll %s: %w", d.path, err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return 0, 0, fmt.Errorf("device %s reported poll events %#x", d.path, fds[0].Revents)
		}

		qb := buffer{Type: bufTypeVideoCapture, Memory: memoryMMap}
		if err := d.ioctl(vidiocDQBuf, unsafe.Pointer(&qb)); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return 0, 0, fmt.Errorf("VIDIOC_DQBUF: %w", err)
		}
		return int(qb.Index), int(qb.BytesUsed), nil
	}
}

func (d *Device) Release(index int) error {
	return d.queue(index)
}

func (d *Device) Teardown() error {
	if d.fd < 0 {
		return nil
	}
	bufType := int32(bufTypeVideoCapture)
	_ = d.ioctl(vidiocStreamOff, unsafe.Pointer(&bufType))
	d.unmap()
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Device) unmap() {
	for _, mem := range d.mapped {
		_ = unix.Munmap(mem)
	}
	d.mapped = nil
}
