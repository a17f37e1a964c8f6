package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/frame"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeYUYV(t *testing.T) {
	format := frame.PixelFormat{Width: 4, Height: 1}
	raw := []byte{
		128, 128, 128, 128,
		81, 90, 235, 240,
	}
	grid, err := New(format, frame.EncodingYUYV, nil).Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	a, b := colorconv.YUYVPairToRGB(128, 128, 128, 128)
	c, d := colorconv.YUYVPairToRGB(81, 90, 235, 240)
	want := []colorconv.RGB{a, b, c, d}
	for i, px := range grid.Pix {
		if px != want[i] {
			t.Fatalf("pixel %d = %+v, want %+v", i, px, want[i])
		}
	}
}

func TestDecodeYUYVErrors(t *testing.T) {
	dec := New(frame.PixelFormat{Width: 4, Height: 2}, frame.EncodingYUYV, nil)
	if _, err := dec.Decode(make([]byte, 10)); !errors.Is(err, ErrDecode) {
		t.Fatalf("short frame should be ErrDecode, got %v", err)
	}
	odd := New(frame.PixelFormat{Width: 3, Height: 2}, frame.EncodingYUYV, nil)
	if _, err := odd.Decode(make([]byte, 12)); !errors.Is(err, ErrDecode) {
		t.Fatalf("odd width should be ErrDecode, got %v", err)
	}
}

func TestDecodeMJPEG(t *testing.T) {
	format := frame.PixelFormat{Width: 32, Height: 16}
	dec := New(format, frame.EncodingMJPEG, nil)

	grid, err := dec.Decode(encodeJPEG(t, solid(32, 16, color.RGBA{R: 128, G: 128, B: 128, A: 255})))
	if err != nil {
		t.Fatalf("decode gray: %v", err)
	}
	px := grid.RGBAt(10, 7)
	if absDiff(px.R, px.G) > 3 || absDiff(px.G, px.B) > 3 || absDiff(px.R, 130) > 4 {
		t.Fatalf("gray decoded to %+v", px)
	}

	grid, err = dec.Decode(encodeJPEG(t, solid(32, 16, color.RGBA{R: 200, G: 30, B: 30, A: 255})))
	if err != nil {
		t.Fatalf("decode red: %v", err)
	}
	px = grid.RGBAt(20, 3)
	if px.R < 180 || px.G > 60 || px.B > 60 {
		t.Fatalf("red decoded to %+v", px)
	}
}

func TestDecodeMJPEGGrayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	grid, err := New(frame.PixelFormat{Width: 16, Height: 8}, frame.EncodingMJPEG, nil).Decode(encodeJPEG(t, gray))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	px := grid.RGBAt(3, 3)
	if px.R != px.G || px.G != px.B {
		t.Fatalf("grayscale jpeg should decode neutral, got %+v", px)
	}
}

func TestDecodeMJPEGErrors(t *testing.T) {
	dec := New(frame.PixelFormat{Width: 32, Height: 16}, frame.EncodingMJPEG, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a jpeg at all")},
		{"wrong size", encodeJPEG(t, solid(16, 16, color.White))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dec.Decode(tt.data); !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestPlanesToRGBSharesChroma(t *testing.T) {
	ycc := image.NewYCbCr(image.Rect(0, 0, 4, 2), image.YCbCrSubsampleRatio420)
	for i := range ycc.Y {
		ycc.Y[i] = uint8(60 + 30*i)
	}
	ycc.Cb[0], ycc.Cr[0] = 100, 180
	ycc.Cb[1], ycc.Cr[1] = 150, 90

	grid := frame.NewGrid(frame.PixelFormat{Width: 4, Height: 2})
	if err := PlanesToRGB(ycc, grid); err != nil {
		t.Fatalf("planes: %v", err)
	}
	a, b := colorconv.YUYVPairToRGB(ycc.Y[4], 100, ycc.Y[5], 180)
	if grid.RGBAt(0, 1) != a || grid.RGBAt(1, 1) != b {
		t.Fatalf("second row left pair = %+v %+v, want %+v %+v", grid.RGBAt(0, 1), grid.RGBAt(1, 1), a, b)
	}
	c := colorconv.YCbCrToRGB(ycc.Y[3], 150, 90)
	if grid.RGBAt(3, 0) != c {
		t.Fatalf("first row right pixel = %+v, want %+v", grid.RGBAt(3, 0), c)
	}
}

type failingPlanes struct{}

func (failingPlanes) DecodePlanes([]byte, int, int) (*image.YCbCr, error) {
	return nil, errors.New("corrupt huffman table")
}

func TestDecodeUsesPlaneDecoder(t *testing.T) {
	dec := New(frame.PixelFormat{Width: 2, Height: 2}, frame.EncodingMJPEG, failingPlanes{})
	if _, err := dec.Decode([]byte{0xff, 0xd8}); !errors.Is(err, ErrDecode) {
		t.Fatalf("plane decoder failure should surface as ErrDecode, got %v", err)
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
