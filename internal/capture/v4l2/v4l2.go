// Package v4l2 implements capture.Device over a Video4Linux2 memory-mapped
// capture node.
package v4l2

import (
	"errors"
	"time"

	"dotsnatch-go/internal/frame"
)

const DefaultPath = "/dev/video0"

// DefaultTimeout bounds how long AcquireNext waits in poll before reporting a
// driver timeout.
const DefaultTimeout = 2 * time.Second

var ErrUnsupported = errors.New("v4l2 capture is only available on linux/amd64 and linux/arm64")

func fourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	pixFmtYUYV  = fourCC('Y', 'U', 'Y', 'V')
	pixFmtMJPEG = fourCC('M', 'J', 'P', 'G')
)

func pixelFormatFor(enc frame.Encoding) (uint32, bool) {
	switch enc {
	case frame.EncodingYUYV:
		return pixFmtYUYV, true
	case frame.EncodingMJPEG:
		return pixFmtMJPEG, true
	default:
		return 0, false
	}
}

func encodingFor(pixfmt uint32) (frame.Encoding, bool) {
	switch pixfmt {
	case pixFmtYUYV:
		return frame.EncodingYUYV, true
	case pixFmtMJPEG:
		return frame.EncodingMJPEG, true
	default:
		return 0, false
	}
}
