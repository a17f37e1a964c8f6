package processing

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"dotsnatch-go/internal/capture"
	"dotsnatch-go/internal/decode"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
	"dotsnatch-go/internal/types"
	"dotsnatch-go/internal/zone"
)

type Acquirer interface {
	AcquireNext(ctx context.Context) (capture.RawFrame, error)
	Release(index int) error
}

type FrameDecoder interface {
	Decode(raw []byte) (*frame.Grid, error)
}

type ParamSource interface {
	Snapshot() detect.Params
}

// FrameHook receives the decoded grid and result before the buffer is
// released. The grid is only valid for the duration of the call.
type FrameHook func(seq uint64, grid *frame.Grid, res detect.Result)

type Pipeline struct {
	SessionID string
	Engine    Acquirer
	Decoder   FrameDecoder
	Detector  *detect.Detector
	Zones     *zone.Classifier
	Params    ParamSource
	Timings   *Timings
	Hook      FrameHook
	LogEvery  int

	last    types.DetectionEvent
	hasLast bool
}

// Step runs one acquire -> decode -> detect -> classify -> release cycle. A
// decode failure returns the previous result marked stale together with an
// error wrapping decode.ErrDecode; any other error is fatal to the loop.
func (p *Pipeline) Step(ctx context.Context) (types.DetectionEvent, error) {
	raw, err := p.Engine.AcquireNext(ctx)
	if err != nil {
		return types.DetectionEvent{}, err
	}
	begin := time.Now()
	params := p.Params.Snapshot()

	grid, decodeErr := p.Decoder.Decode(raw.Data)
	p.observe("decode", time.Since(begin))
	if decodeErr != nil {
		if err := p.Engine.Release(raw.Index); err != nil {
			return types.DetectionEvent{}, err
		}
		return p.staleEvent(raw), decodeErr
	}

	detectStart := time.Now()
	res := p.Detector.Detect(grid, params)
	p.observe("detect", time.Since(detectStart))

	label := zone.None
	if p.Zones != nil {
		label = p.Zones.ClassifyResult(res, params.Threshold)
	}
	if p.Hook != nil {
		p.Hook(raw.Seq, grid, res)
	}
	if err := p.Engine.Release(raw.Index); err != nil {
		return types.DetectionEvent{}, err
	}
	p.observe("frame", time.Since(begin))

	ev := types.DetectionEvent{
		Type:       "detection",
		SessionID:  p.SessionID,
		Seq:        raw.Seq,
		Timestamp:  float64(raw.Timestamp.UnixNano()) / 1e9,
		Found:      res.Found,
		X:          res.Position.X,
		Y:          res.Position.Y,
		Confidence: res.Confidence,
		Zone:       label,
		Seeds:      res.Seeds,
	}
	p.last = ev
	p.hasLast = true
	return ev, nil
}

func (p *Pipeline) staleEvent(raw capture.RawFrame) types.DetectionEvent {
	ev := p.last
	if !p.hasLast {
		nf := detect.NotFound()
		ev = types.DetectionEvent{
			Type:       "detection",
			SessionID:  p.SessionID,
			X:          nf.Position.X,
			Y:          nf.Position.Y,
			Confidence: nf.Confidence,
			Zone:       zone.None,
		}
	}
	ev.Seq = raw.Seq
	ev.Timestamp = float64(raw.Timestamp.UnixNano()) / 1e9
	ev.Stale = true
	return ev
}

func (p *Pipeline) observe(stage string, d time.Duration) {
	if p.Timings != nil {
		p.Timings.Observe(stage, d)
	}
}

// Run processes frames strictly in acquisition order until ctx is cancelled or
// a fatal error occurs. Cancellation is only checked between frames.
func (p *Pipeline) Run(ctx context.Context, events chan<- types.DetectionEvent) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		ev, err := p.Step(ctx)
		if err != nil {
			if !errors.Is(err, decode.ErrDecode) {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			logEveryN(p.LogEvery, "frame %d dropped: %v", ev.Seq, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case events <- ev:
		}
	}
}

var logCounter atomic.Uint64

func logEveryN(n int, format string, args ...any) {
	if n < 1 {
		n = 1
	}
	if logCounter.Add(1)%uint64(n) == 1%uint64(n) {
		log.Printf(format, args...)
	}
}
