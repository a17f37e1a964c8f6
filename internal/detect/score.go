package detect

import (
	"math"

	"dotsnatch-go/internal/colorconv"
)

// sample is one neighborhood offset with its target profile precomputed.
type sample struct {
	dx, dy  int
	wantSat float64
	wantVal float64
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// taper maps distance 0 to 0 and large distances towards 1.
func taper(d, radius float64) float64 {
	if d <= 0 {
		return 0
	}
	return d / (d + radius/8)
}

// desired returns the saturation and value expected at tapered distance t:
// white at the core, saturated towards the halo.
func (p Params) desired(t float64) (float64, float64) {
	sat := math.Pow(t, p.SatCurve)
	val := lerp(p.CoreValue, p.HaloValue, math.Pow(t, p.ValCurve))
	return sat, val
}

func (p Params) isSeed(c colorconv.HSV) bool {
	return c.S <= p.FilterSat &&
		c.V >= p.FilterVal &&
		colorconv.HueDistance(c.H, p.RefHue) <= p.FilterHue
}

// whiteness is 1 for a fully blown-out pixel and falls to 0 as value drops
// below the falloff band or saturation rises.
func (p Params) whiteness(c colorconv.HSV) float64 {
	var w float64
	switch {
	case p.WhiteFalloff > 0:
		w = clamp01((c.V - (1 - p.WhiteFalloff)) / p.WhiteFalloff)
	case c.V >= 1:
		w = 1
	}
	return w * (1 - c.S)
}

func (p Params) hueOffset(c colorconv.HSV) float64 {
	deviation := colorconv.HueDistance(c.H, p.RefHue) / 180
	attenuation := clamp01(1 - p.WhitePenalty*math.Pow(p.whiteness(c), p.WhiteCurve))
	return deviation * c.V * attenuation
}

func valOffset(want, got float64) float64 {
	if want <= 0 {
		return 0
	}
	return clamp01((want - got) / want)
}

// contribution is the product of the three channel agreements, each one minus
// its strength-scaled offset clamped to [0,1].
func (p Params) contribution(c colorconv.HSV, s sample) float64 {
	h := 1 - clamp01(p.hueOffset(c)*p.HueStrength)
	if h == 0 {
		return 0
	}
	sat := 1 - clamp01(math.Abs(s.wantSat-c.S)*p.SatStrength)
	if sat == 0 {
		return 0
	}
	val := 1 - clamp01(valOffset(s.wantVal, c.V)*p.ValStrength)
	return h * sat * val
}

// buildKernel lists the strided offsets inside the circular window.
func (p Params) buildKernel(dst []sample) []sample {
	dst = dst[:0]
	step := p.SampleStep
	reach := int(p.ScanRadius) / step
	for ky := -reach; ky <= reach; ky++ {
		for kx := -reach; kx <= reach; kx++ {
			dx, dy := kx*step, ky*step
			d := math.Hypot(float64(dx), float64(dy))
			if d > p.ScanRadius {
				continue
			}
			sat, val := p.desired(taper(d, p.ScanRadius))
			dst = append(dst, sample{dx: dx, dy: dy, wantSat: sat, wantVal: val})
		}
	}
	return dst
}

func (p Params) scoreSeed(hsv []colorconv.HSV, width, height, x, y int, kernel []sample) float64 {
	score := 0.0
	for _, s := range kernel {
		ox, oy := x+s.dx, y+s.dy
		if ox < 0 || oy < 0 || ox >= width || oy >= height {
			continue
		}
		score += p.contribution(hsv[oy*width+ox], s)
	}
	return score
}
