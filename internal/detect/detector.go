// Package detect locates a bright reddish dot in an RGB frame.
package detect

import (
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/frame"
)

// Result is produced fresh every frame. Confidence is -1 when Found is false.
type Result struct {
	Position   image.Point `json:"position"`
	Confidence float64     `json:"confidence"`
	Found      bool        `json:"found"`
	Seeds      int         `json:"seeds"`
}

func NotFound() Result {
	return Result{Position: image.Point{X: -1, Y: -1}, Confidence: -1}
}

type candidate struct {
	score float64
	index int
	seeds int
}

// Detector owns the per-frame arenas (HSV plane, sampling kernel, per-worker
// slots). A Detector must not be used by two goroutines at once.
type Detector struct {
	format frame.PixelFormat
	hsv    []colorconv.HSV
	kernel []sample
	slots  []candidate
}

func New(format frame.PixelFormat) *Detector {
	return &Detector{
		format: format,
		hsv:    make([]colorconv.HSV, format.PixelCount()),
	}
}

func (d *Detector) ensure(format frame.PixelFormat) {
	if format == d.format && len(d.hsv) == format.PixelCount() {
		return
	}
	d.format = format
	d.hsv = make([]colorconv.HSV, format.PixelCount())
}

// Detect scans the grid with params.Workers goroutines and reduces their best
// candidates. Workers read the shared grid and write only their own slot.
func (d *Detector) Detect(grid *frame.Grid, params Params) Result {
	p := params.Clamped()
	d.ensure(grid.Format)
	width, height := grid.Format.Width, grid.Format.Height

	spans := Partition(grid.Format.PixelCount(), p.Workers, width)
	if cap(d.slots) < len(spans) {
		d.slots = make([]candidate, len(spans))
	}
	d.slots = d.slots[:len(spans)]
	d.kernel = p.buildKernel(d.kernel)

	var convert errgroup.Group
	for _, span := range spans {
		convert.Go(func() error {
			for i := span.Start; i < span.End; i++ {
				d.hsv[i] = colorconv.RGBToHSV(grid.Pix[i])
			}
			return nil
		})
	}
	_ = convert.Wait()

	var search errgroup.Group
	for w, span := range spans {
		search.Go(func() error {
			d.slots[w] = d.scan(span, p, width, height)
			return nil
		})
	}
	_ = search.Wait()

	best := candidate{score: math.Inf(-1), index: -1}
	seeds := 0
	for _, c := range d.slots {
		seeds += c.seeds
		if c.score > best.score {
			best.score = c.score
			best.index = c.index
		}
	}
	if best.index < 0 {
		res := NotFound()
		res.Seeds = seeds
		return res
	}
	return Result{
		Position:   grid.Format.Point(best.index),
		Confidence: best.score,
		Found:      true,
		Seeds:      seeds,
	}
}

// scan evaluates the seeds of one span. After a seed the scan skips SkipLen
// pixels but never past the end of the row, so results do not depend on where
// span boundaries fall.
func (d *Detector) scan(span Span, p Params, width, height int) candidate {
	best := candidate{score: math.Inf(-1), index: -1}
	i := span.Start
	for i < span.End {
		if !p.isSeed(d.hsv[i]) {
			i++
			continue
		}
		best.seeds++
		score := p.scoreSeed(d.hsv, width, height, i%width, i/width, d.kernel)
		if score > best.score {
			best.score = score
			best.index = i
		}
		rowEnd := (i/width + 1) * width
		i = min(i+1+p.SkipLen, rowEnd)
	}
	return best
}
