// Package simulator is a synthetic capture device that renders a moving laser
// dot over a noisy background.
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"math/rand"
	"time"

	"dotsnatch-go/internal/capture"
	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
)

type Config struct {
	Rate         float64 // frames per second, 0 delivers as fast as requested
	Noise        float64 // per-channel noise stddev in 8-bit units
	Params       detect.Params
	DropEvery    int // every Nth frame has no dot
	CorruptEvery int // every Nth frame is unreadable
	Seed         int64
}

func DefaultConfig() Config {
	return Config{
		Rate:      30,
		Noise:     4,
		Params:    detect.DefaultParams(),
		DropEvery: 50,
		Seed:      1,
	}
}

type Device struct {
	cfg       Config
	format    capture.Format
	buffers   [][]byte
	queue     []int
	queued    []bool
	ticker    *time.Ticker
	streaming bool
	grid      *frame.Grid
	rng       *rand.Rand
	frameNo   int
}

func New(cfg Config) *Device {
	return &Device{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Configure accepts any positive size. YUYV widths are rounded down to even,
// as a driver would.
func (d *Device) Configure(req capture.Format) (capture.Format, error) {
	if req.Encoding != frame.EncodingYUYV && req.Encoding != frame.EncodingMJPEG {
		return capture.Format{}, fmt.Errorf("simulator does not produce %s", req.Encoding)
	}
	actual := req
	if actual.Encoding == frame.EncodingYUYV {
		actual.Pixels.Width &^= 1
	}
	if actual.Pixels.Width <= 0 || actual.Pixels.Height <= 0 {
		return capture.Format{}, fmt.Errorf("invalid size %s", req.Pixels)
	}
	d.format = actual
	d.grid = frame.NewGrid(actual.Pixels)
	return actual, nil
}

func (d *Device) bufferSize() int {
	if d.format.Encoding == frame.EncodingYUYV {
		return frame.EncodingYUYV.FrameSize(d.format.Pixels)
	}
	return d.format.Pixels.PixelCount()*3 + 4096
}

func (d *Device) AllocateBuffers(count int) ([][]byte, error) {
	if d.grid == nil {
		return nil, errors.New("device not configured")
	}
	d.buffers = make([][]byte, count)
	for i := range d.buffers {
		d.buffers[i] = make([]byte, d.bufferSize())
	}
	d.queued = make([]bool, count)
	return d.buffers, nil
}

func (d *Device) enqueue(index int) error {
	if index < 0 || index >= len(d.buffers) {
		return fmt.Errorf("buffer %d out of range", index)
	}
	if d.queued[index] {
		return fmt.Errorf("buffer %d already queued", index)
	}
	d.queued[index] = true
	d.queue = append(d.queue, index)
	return nil
}

func (d *Device) Arm(index int) error {
	return d.enqueue(index)
}

func (d *Device) StartStreaming() error {
	if len(d.queue) == 0 {
		return errors.New("no buffers queued")
	}
	if d.cfg.Rate > 0 {
		d.ticker = time.NewTicker(time.Duration(float64(time.Second) / d.cfg.Rate))
	}
	d.streaming = true
	return nil
}

func (d *Device) AcquireNext(ctx context.Context) (int, int, error) {
	if !d.streaming {
		return 0, 0, errors.New("not streaming")
	}
	if d.ticker != nil {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-d.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if len(d.queue) == 0 {
		return 0, 0, errors.New("no buffer queued for capture")
	}
	index := d.queue[0]
	d.queue = d.queue[1:]
	d.queued[index] = false

	n := d.frameNo
	d.frameNo++
	length, err := d.fill(n, d.buffers[index])
	if err != nil {
		return 0, 0, err
	}
	return index, length, nil
}

func (d *Device) Release(index int) error {
	return d.enqueue(index)
}

func (d *Device) Teardown() error {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	d.streaming = false
	d.buffers = nil
	d.queue = nil
	return nil
}

// DotAt is the dot center for frame n, following a Lissajous path that keeps
// the whole dot inside the frame. ok is false on frames without a dot.
func (d *Device) DotAt(n int) (image.Point, bool) {
	if d.cfg.DropEvery > 0 && n%d.cfg.DropEvery == d.cfg.DropEvery-1 {
		return image.Point{}, false
	}
	w, h := d.format.Pixels.Width, d.format.Pixels.Height
	margin := d.cfg.Params.ScanRadius + 2
	ax := math.Max(float64(w)/2-margin, 0)
	ay := math.Max(float64(h)/2-margin, 0)
	x := float64(w)/2 + ax*math.Sin(float64(n)*0.037)
	y := float64(h)/2 + ay*math.Sin(float64(n)*0.023+0.5)
	return image.Pt(int(x), int(y)), true
}

func (d *Device) render(n int) {
	w := d.format.Pixels.Width
	for i := range d.grid.Pix {
		x, y := i%w, i/w
		base := colorconv.RGB{R: uint8(12 + x%16), G: uint8(14 + y%8), B: 48}
		if d.cfg.Noise > 0 {
			base.R = noisy(base.R, d.rng.NormFloat64()*d.cfg.Noise)
			base.G = noisy(base.G, d.rng.NormFloat64()*d.cfg.Noise)
			base.B = noisy(base.B, d.rng.NormFloat64()*d.cfg.Noise)
		}
		d.grid.Pix[i] = base
	}
	if pos, ok := d.DotAt(n); ok {
		detect.PaintDot(d.grid, pos, d.cfg.Params)
	}
}

func noisy(v uint8, delta float64) uint8 {
	return uint8(math.Max(0, math.Min(255, float64(v)+delta)))
}

func (d *Device) fill(n int, dst []byte) (int, error) {
	if d.cfg.CorruptEvery > 0 && n%d.cfg.CorruptEvery == d.cfg.CorruptEvery-1 {
		d.rng.Read(dst[:64])
		return 64, nil
	}
	d.render(n)
	if d.format.Encoding == frame.EncodingYUYV {
		return EncodeYUYV(d.grid, dst), nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, d.grid, &jpeg.Options{Quality: 90}); err != nil {
		return 0, err
	}
	if buf.Len() > len(dst) {
		return 0, fmt.Errorf("jpeg frame of %d bytes exceeds buffer of %d", buf.Len(), len(dst))
	}
	return copy(dst, buf.Bytes()), nil
}

// EncodeYUYV packs grid as Y1 U Y2 V, averaging chroma over each pixel pair.
// It returns the number of bytes written.
func EncodeYUYV(g *frame.Grid, dst []byte) int {
	n := 0
	for j := 0; j+1 < len(g.Pix); j += 2 {
		y1, cb1, cr1 := colorconv.RGBToYCbCr(g.Pix[j])
		y2, cb2, cr2 := colorconv.RGBToYCbCr(g.Pix[j+1])
		dst[n] = y1
		dst[n+1] = uint8((int(cb1) + int(cb2) + 1) / 2)
		dst[n+2] = y2
		dst[n+3] = uint8((int(cr1) + int(cr2) + 1) / 2)
		n += 4
	}
	return n
}
