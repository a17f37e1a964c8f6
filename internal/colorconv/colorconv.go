// Package colorconv holds the per-pixel color transforms used by the decoder and
// the detector. Every function is pure.
package colorconv

import "math"

type RGB struct {
	R uint8
	G uint8
	B uint8
}

// HSV uses H in [0,360) and S, V in [0,1].
type HSV struct {
	H float64
	S float64
	V float64
}

// YCbCrToRGB applies the BT.601 studio-range integer transform to one sample.
func YCbCrToRGB(y, cb, cr uint8) RGB {
	d := int(cb) - 128
	e := int(cr) - 128
	return lumaToRGB(int(y)-16, d, e)
}

// YUYVPairToRGB decodes one packed Y1 U Y2 V group. Both luma samples share the
// chroma pair.
func YUYVPairToRGB(y1, u, y2, v uint8) (RGB, RGB) {
	d := int(u) - 128
	e := int(v) - 128
	return lumaToRGB(int(y1)-16, d, e), lumaToRGB(int(y2)-16, d, e)
}

func lumaToRGB(c, d, e int) RGB {
	return RGB{
		R: clampByte((298*c + 409*e + 128) >> 8),
		G: clampByte((298*c - 100*d - 208*e + 128) >> 8),
		B: clampByte((298*c + 516*d + 128) >> 8),
	}
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// RGBToHSV returns hue 0 when the pixel is achromatic.
func RGBToHSV(c RGB) HSV {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case maxC == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}

	s := 0.0
	if maxC > 0 {
		s = delta / maxC
	}
	return HSV{H: h, S: s, V: maxC}
}

func HSVToRGB(c HSV) RGB {
	h := math.Mod(c.H, 360)
	if h < 0 {
		h += 360
	}
	s := clampUnit(c.S)
	v := clampUnit(c.V)

	chroma := v * s
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - chroma

	var r, g, b float64
	switch sextant := int(h / 60); sextant {
	case 0:
		r, g, b = chroma, x, 0
	case 1:
		r, g, b = x, chroma, 0
	case 2:
		r, g, b = 0, chroma, x
	case 3:
		r, g, b = 0, x, chroma
	case 4:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	return RGB{
		R: unitToByte(r + m),
		G: unitToByte(g + m),
		B: unitToByte(b + m),
	}
}

// HueDistance is the angular distance between two hues in degrees, in [0,180].
func HueDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func unitToByte(v float64) uint8 {
	return clampByte(int(math.Round(clampUnit(v) * 255)))
}

// RGBToYCbCr is the studio-range inverse of YCbCrToRGB, used to synthesize
// packed frames.
func RGBToYCbCr(c RGB) (y, cb, cr uint8) {
	r, g, b := int(c.R), int(c.G), int(c.B)
	y = clampByte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
	cb = clampByte(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
	cr = clampByte(((112*r - 94*g - 18*b + 128) >> 8) + 128)
	return y, cb, cr
}
