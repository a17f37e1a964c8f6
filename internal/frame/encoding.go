package frame

import (
	"fmt"
	"strings"
)

// Encoding is the wire layout of a raw frame buffer.
type Encoding int

const (
	EncodingYUYV Encoding = iota + 1
	EncodingMJPEG
)

func (e Encoding) String() string {
	switch e {
	case EncodingYUYV:
		return "yuyv"
	case EncodingMJPEG:
		return "mjpeg"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yuyv", "yuy2", "yuv422":
		return EncodingYUYV, nil
	case "mjpeg", "mjpg", "jpeg":
		return EncodingMJPEG, nil
	default:
		return 0, fmt.Errorf("unknown pixel encoding %q", s)
	}
}

// FrameSize is the exact byte size of a packed frame, or 0 for variable-size encodings.
func (e Encoding) FrameSize(f PixelFormat) int {
	if e == EncodingYUYV {
		return f.PixelCount() * 2
	}
	return 0
}
