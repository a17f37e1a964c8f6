package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type State int32

const (
	StateUninitialized State = iota
	StateConfigured
	StateBuffersAllocated
	StateStreaming
	StateAcquired
	StateReleased
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateBuffersAllocated:
		return "buffers_allocated"
	case StateStreaming:
		return "streaming"
	case StateAcquired:
		return "acquired"
	case StateReleased:
		return "released"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RawFrame is a read-only view into a device buffer. Data is only valid until
// the buffer is released.
type RawFrame struct {
	Index     int
	Data      []byte
	Seq       uint64
	Timestamp time.Time
}

type Stats struct {
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	Acquired      uint64 `json:"frames_acquired_total"`
	AcquireErrors uint64 `json:"acquire_errors_total"`
}

// Engine owns the device buffers and enforces that at most one buffer is held
// by the caller at a time. Lifecycle methods must be called from one goroutine;
// State and Stats are safe to read concurrently.
type Engine struct {
	device    Device
	sessionID string
	state     atomic.Int32
	format    Format
	buffers   [][]byte
	armed     []bool
	held      int
	seq       uint64

	acquired      atomic.Uint64
	acquireErrors atomic.Uint64
}

func NewEngine(device Device) *Engine {
	return &Engine{
		device:    device,
		sessionID: uuid.NewString(),
		held:      -1,
	}
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Format() Format {
	return e.format
}

func (e *Engine) Stats() Stats {
	return Stats{
		SessionID:     e.sessionID,
		State:         e.State().String(),
		Acquired:      e.acquired.Load(),
		AcquireErrors: e.acquireErrors.Load(),
	}
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Configure treats req as a request; the negotiated format is returned.
func (e *Engine) Configure(req Format) (Format, error) {
	if st := e.State(); st != StateUninitialized && st != StateConfigured {
		return Format{}, fmt.Errorf("%w: configure in state %s", ErrState, st)
	}
	actual, err := e.device.Configure(req)
	if err != nil {
		return Format{}, fmt.Errorf("%w: %w", ErrDeviceConfig, err)
	}
	if actual.Pixels.PixelCount() <= 0 {
		return Format{}, fmt.Errorf("%w: device reported empty format %s", ErrDeviceConfig, actual.Pixels)
	}
	e.format = actual
	e.setState(StateConfigured)
	return actual, nil
}

func (e *Engine) AllocateBuffers(count int) error {
	if st := e.State(); st != StateConfigured {
		return fmt.Errorf("%w: allocate in state %s", ErrState, st)
	}
	if count < 1 {
		return fmt.Errorf("%w: invalid buffer count %d", ErrBufferAlloc, count)
	}
	buffers, err := e.device.AllocateBuffers(count)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBufferAlloc, err)
	}
	if len(buffers) != count {
		return fmt.Errorf("%w: requested %d buffers, device provided %d", ErrBufferAlloc, count, len(buffers))
	}
	e.buffers = buffers
	e.armed = make([]bool, count)
	e.setState(StateBuffersAllocated)
	return nil
}

// Arm submits a buffer to the fill queue once at startup.
func (e *Engine) Arm(index int) error {
	if st := e.State(); st != StateBuffersAllocated {
		return fmt.Errorf("%w: arm in state %s", ErrState, st)
	}
	if index < 0 || index >= len(e.buffers) {
		return fmt.Errorf("%w: buffer index %d out of range", ErrQueue, index)
	}
	if e.armed[index] {
		return fmt.Errorf("%w: buffer %d already armed", ErrQueue, index)
	}
	if err := e.device.Arm(index); err != nil {
		return fmt.Errorf("%w: buffer %d: %w", ErrQueue, index, err)
	}
	e.armed[index] = true
	return nil
}

func (e *Engine) StartStreaming() error {
	if st := e.State(); st != StateBuffersAllocated {
		return fmt.Errorf("%w: start in state %s", ErrState, st)
	}
	armed := 0
	for _, ok := range e.armed {
		if ok {
			armed++
		}
	}
	if armed == 0 {
		return fmt.Errorf("%w: no buffers armed", ErrStreamStart)
	}
	if err := e.device.StartStreaming(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamStart, err)
	}
	e.setState(StateStreaming)
	return nil
}

// Open runs the whole setup sequence with BufferCount buffers. Any failure tears
// the device down and aborts initialization.
func (e *Engine) Open(req Format) (Format, error) {
	actual, err := e.Configure(req)
	if err == nil {
		err = e.AllocateBuffers(BufferCount)
	}
	for i := 0; err == nil && i < BufferCount; i++ {
		err = e.Arm(i)
	}
	if err == nil {
		err = e.StartStreaming()
	}
	if err != nil {
		_ = e.Teardown()
		return Format{}, err
	}
	return actual, nil
}

// AcquireNext blocks until the device delivers a filled buffer. Calling it again
// before Release is an ErrState error.
func (e *Engine) AcquireNext(ctx context.Context) (RawFrame, error) {
	switch st := e.State(); st {
	case StateStreaming, StateReleased:
	default:
		return RawFrame{}, fmt.Errorf("%w: acquire in state %s", ErrState, st)
	}
	index, length, err := e.device.AcquireNext(ctx)
	if err != nil {
		e.acquireErrors.Add(1)
		return RawFrame{}, fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	if index < 0 || index >= len(e.buffers) {
		e.acquireErrors.Add(1)
		return RawFrame{}, fmt.Errorf("%w: device returned buffer index %d", ErrAcquire, index)
	}
	buf := e.buffers[index]
	if length < 0 || length > len(buf) {
		e.acquireErrors.Add(1)
		return RawFrame{}, fmt.Errorf("%w: buffer %d reports %d bytes of %d", ErrAcquire, index, length, len(buf))
	}
	e.held = index
	e.seq++
	e.acquired.Add(1)
	e.setState(StateAcquired)
	return RawFrame{
		Index:     index,
		Data:      buf[:length:length],
		Seq:       e.seq,
		Timestamp: time.Now(),
	}, nil
}

// Release hands the held buffer back to the device fill queue.
func (e *Engine) Release(index int) error {
	if st := e.State(); st != StateAcquired {
		return fmt.Errorf("%w: release in state %s", ErrState, st)
	}
	if index != e.held {
		return fmt.Errorf("%w: release of buffer %d while holding %d", ErrState, index, e.held)
	}
	if err := e.device.Release(index); err != nil {
		return fmt.Errorf("%w: requeue buffer %d: %w", ErrQueue, index, err)
	}
	e.held = -1
	e.setState(StateReleased)
	return nil
}

// Teardown is valid from any state and idempotent.
func (e *Engine) Teardown() error {
	if e.State() == StateClosed {
		return nil
	}
	err := e.device.Teardown()
	e.buffers = nil
	e.armed = nil
	e.held = -1
	e.setState(StateClosed)
	return err
}
