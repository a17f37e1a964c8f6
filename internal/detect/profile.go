package detect

import (
	"image"
	"math"

	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/frame"
)

// ProfileAt is the color the scorer expects at distance d from a dot center.
func (p Params) ProfileAt(d float64) colorconv.HSV {
	sat, val := p.desired(taper(d, p.ScanRadius))
	return colorconv.HSV{H: p.RefHue, S: sat, V: val}
}

// PaintDot renders an ideal dot of radius ScanRadius centered at c. The
// simulator and calibration tests use it as ground truth.
func PaintDot(g *frame.Grid, c image.Point, params Params) {
	p := params.Clamped()
	r := int(math.Ceil(p.ScanRadius))
	for y := max(c.Y-r, 0); y <= min(c.Y+r, g.Format.Height-1); y++ {
		for x := max(c.X-r, 0); x <= min(c.X+r, g.Format.Width-1); x++ {
			d := math.Hypot(float64(x-c.X), float64(y-c.Y))
			if d > p.ScanRadius {
				continue
			}
			g.Set(x, y, colorconv.HSVToRGB(p.ProfileAt(d)))
		}
	}
}
