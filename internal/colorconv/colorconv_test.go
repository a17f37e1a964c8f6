package colorconv

import (
	"math"
	"testing"
)

func TestYCbCrMidGray(t *testing.T) {
	got := YCbCrToRGB(128, 128, 128)
	if got.R != got.G || got.G != got.B {
		t.Fatalf("mid gray is not neutral: %+v", got)
	}
	if diff := int(got.R) - 128; diff < -2 || diff > 2 {
		t.Fatalf("mid gray too far from 128: %+v", got)
	}
}

func TestYCbCrClamps(t *testing.T) {
	black := YCbCrToRGB(0, 128, 128)
	if black != (RGB{}) {
		t.Fatalf("sub-black luma should clamp to 0: %+v", black)
	}
	white := YCbCrToRGB(255, 128, 128)
	if white != (RGB{255, 255, 255}) {
		t.Fatalf("super-white luma should clamp to 255: %+v", white)
	}
	red := YCbCrToRGB(81, 90, 240)
	if red.R < 250 || red.G > 5 || red.B > 5 {
		t.Fatalf("BT.601 red decoded to %+v", red)
	}
}

func TestYUYVPairSharesChroma(t *testing.T) {
	a, b := YUYVPairToRGB(60, 100, 200, 180)
	if a != YCbCrToRGB(60, 100, 180) {
		t.Fatalf("first sample mismatch: %+v", a)
	}
	if b != YCbCrToRGB(200, 100, 180) {
		t.Fatalf("second sample mismatch: %+v", b)
	}
}

func TestRGBToHSVPrimaries(t *testing.T) {
	tests := []struct {
		name string
		in   RGB
		want HSV
	}{
		{"red", RGB{255, 0, 0}, HSV{0, 1, 1}},
		{"green", RGB{0, 255, 0}, HSV{120, 1, 1}},
		{"blue", RGB{0, 0, 255}, HSV{240, 1, 1}},
		{"magenta", RGB{255, 0, 255}, HSV{300, 1, 1}},
		{"black", RGB{0, 0, 0}, HSV{0, 0, 0}},
		{"white", RGB{255, 255, 255}, HSV{0, 0, 1}},
		{"gray", RGB{128, 128, 128}, HSV{0, 0, 128.0 / 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RGBToHSV(tt.in)
			if math.Abs(got.H-tt.want.H) > 1e-9 || math.Abs(got.S-tt.want.S) > 1e-9 || math.Abs(got.V-tt.want.V) > 1e-9 {
				t.Fatalf("RGBToHSV(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHSVRoundTrip(t *testing.T) {
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 17 {
			for b := 0; b < 256; b += 13 {
				in := RGB{uint8(r), uint8(g), uint8(b)}
				hsv := RGBToHSV(in)
				if hsv.H < 0 || hsv.H >= 360 {
					t.Fatalf("hue out of range for %+v: %v", in, hsv.H)
				}
				if hsv.S == 0 {
					continue
				}
				out := HSVToRGB(hsv)
				if absDiff(in.R, out.R) > 1 || absDiff(in.G, out.G) > 1 || absDiff(in.B, out.B) > 1 {
					t.Fatalf("round trip %+v -> %+v -> %+v", in, hsv, out)
				}
			}
		}
	}
}

func TestHueDistance(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{10, 350, 20},
		{350, 10, 20},
		{0, 180, 180},
		{90, 300, 150},
	}
	for _, tt := range tests {
		if got := HueDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("HueDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestRGBToYCbCrInverse(t *testing.T) {
	for _, in := range []RGB{{0, 0, 0}, {255, 255, 255}, {128, 128, 128}, {200, 40, 40}, {30, 160, 90}} {
		y, cb, cr := RGBToYCbCr(in)
		out := YCbCrToRGB(y, cb, cr)
		if absDiff(in.R, out.R) > 4 || absDiff(in.G, out.G) > 4 || absDiff(in.B, out.B) > 4 {
			t.Fatalf("%+v -> (%d,%d,%d) -> %+v", in, y, cb, cr, out)
		}
	}
}
