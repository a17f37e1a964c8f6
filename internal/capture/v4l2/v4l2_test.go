package v4l2

import (
	"testing"

	"dotsnatch-go/internal/frame"
)

func TestFourCC(t *testing.T) {
	if pixFmtYUYV != 0x56595559 {
		t.Fatalf("unexpected YUYV fourcc %#x", pixFmtYUYV)
	}
	if pixFmtMJPEG != 0x47504a4d {
		t.Fatalf("unexpected MJPG fourcc %#x", pixFmtMJPEG)
	}
	for _, enc := range []frame.Encoding{frame.EncodingYUYV, frame.EncodingMJPEG} {
		code, ok := pixelFormatFor(enc)
		if !ok {
			t.Fatalf("no fourcc for %s", enc)
		}
		back, ok := encodingFor(code)
		if !ok || back != enc {
			t.Fatalf("fourcc round trip for %s gave %v", enc, back)
		}
	}
}
