//go:build linux && (amd64 || arm64)

package v4l2

import (
	"testing"
	"unsafe"
)

func TestStructLayout(t *testing.T) {
	if got := unsafe.Sizeof(format{}); got != 208 {
		t.Fatalf("v4l2_format size %d, want 208", got)
	}
	if got := unsafe.Sizeof(requestBuffers{}); got != 20 {
		t.Fatalf("v4l2_requestbuffers size %d, want 20", got)
	}
	if got := unsafe.Sizeof(buffer{}); got != 88 {
		t.Fatalf("v4l2_buffer size %d, want 88", got)
	}
	if got := unsafe.Offsetof(buffer{}.Offset); got != 64 {
		t.Fatalf("v4l2_buffer.m offset %d, want 64", got)
	}
}
