// Package preview renders downscaled JPEG thumbnails of the live feed with the
// detection and zone layout drawn on top.
package preview

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
	"dotsnatch-go/internal/zone"
)

var (
	zoneColor = color.NRGBA{R: 0, G: 200, B: 255, A: 255}
	hitColor  = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	weakColor = color.NRGBA{R: 255, G: 220, B: 0, A: 255}
)

const jpegQuality = 80

// Overlay copies grid and draws every zone outline plus a ring around the
// detection. Rings above threshold are green and get thicker with confidence.
func Overlay(grid *frame.Grid, res detect.Result, zones []zone.Zone, params detect.Params) *image.NRGBA {
	img := imaging.Clone(grid)
	for _, z := range zones {
		drawRect(img, image.Rect(z.West, z.North, z.East+1, z.South+1), zoneColor)
	}
	if !res.Found {
		return img
	}
	c := weakColor
	thickness := 1
	if res.Confidence > params.Threshold {
		c = hitColor
		thickness = min(1+int(res.Confidence/50), 4)
	}
	drawRing(img, res.Position, params.ScanRadius, thickness, c)
	return img
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}

func drawRing(img *image.NRGBA, center image.Point, radius float64, thickness int, c color.NRGBA) {
	outer := radius + float64(thickness)/2
	inner := radius - float64(thickness)/2
	reach := int(math.Ceil(outer))
	bounds := img.Bounds()
	for dy := -reach; dy <= reach; dy++ {
		for dx := -reach; dx <= reach; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d < inner || d > outer {
				continue
			}
			p := center.Add(image.Pt(dx, dy))
			if p.In(bounds) {
				img.SetNRGBA(p.X, p.Y, c)
			}
		}
	}
}

// Thumbnail scales img to width, keeping the aspect ratio. Images already at
// or below width are returned unchanged.
func Thumbnail(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Box)
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store keeps the most recent rendered preview. Capture is called from the
// pipeline hook and renders at most once per interval.
type Store struct {
	width    int
	interval time.Duration
	zones    []zone.Zone
	params   func() detect.Params

	mu       sync.RWMutex
	jpeg     []byte
	seq      uint64
	rendered time.Time
}

func NewStore(width int, interval time.Duration, zones []zone.Zone, params func() detect.Params) *Store {
	return &Store{
		width:    width,
		interval: interval,
		zones:    append([]zone.Zone(nil), zones...),
		params:   params,
	}
}

// Capture matches processing.FrameHook.
func (s *Store) Capture(seq uint64, grid *frame.Grid, res detect.Result) {
	now := time.Now()
	s.mu.RLock()
	due := s.jpeg == nil || now.Sub(s.rendered) >= s.interval
	s.mu.RUnlock()
	if !due {
		return
	}

	img := Thumbnail(Overlay(grid, res, s.zones, s.params()), s.width)
	data, err := EncodeJPEG(img)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.jpeg = data
	s.seq = seq
	s.rendered = now
	s.mu.Unlock()
}

// Latest returns the last JPEG and its frame sequence; ok is false until the
// first frame has been captured.
func (s *Store) Latest() (data []byte, seq uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg, s.seq, s.jpeg != nil
}
