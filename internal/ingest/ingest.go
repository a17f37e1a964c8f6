// Package ingest receives frames pushed by a remote camera over ZeroMQ.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"dotsnatch-go/internal/capture"
	"dotsnatch-go/internal/frame"
)

// ErrTimeout is returned by AcquireNext when no frame arrives in time.
var ErrTimeout = errors.New("no frame received")

const (
	recvPoll     = 100 * time.Millisecond
	pendingDepth = 4
)

// message is one decoded frame. Expects CBOR maps shaped like
// { "type": "frame", "seq": <int>, "width": <int>, "height": <int>, "encoding": "yuyv"|"mjpeg", "data": <bytes> }
// where data may also be a tag 64 typed array, optionally wrapped in a tag 40
// multi-dimensional array.
type message struct {
	Seq      int
	Width    int
	Height   int
	Encoding frame.Encoding
	Data     []byte
}

// Device is a capture.Device backed by a PULL socket. Messages whose size or
// encoding differ from the configured format are dropped.
type Device struct {
	endpoint string
	timeout  time.Duration
	logEvery int

	format  capture.Format
	bufSize int
	buffers [][]byte
	queue   []int

	frames  chan message
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func New(endpoint string, timeout time.Duration, logEvery int) *Device {
	if logEvery < 1 {
		logEvery = 1
	}
	return &Device{endpoint: endpoint, timeout: timeout, logEvery: logEvery}
}

// Dropped counts messages discarded by the receiver.
func (d *Device) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Device) Configure(req capture.Format) (capture.Format, error) {
	if req.Pixels.Width <= 0 || req.Pixels.Height <= 0 {
		return capture.Format{}, fmt.Errorf("invalid size %s", req.Pixels)
	}
	switch req.Encoding {
	case frame.EncodingYUYV:
		d.bufSize = frame.EncodingYUYV.FrameSize(req.Pixels)
	case frame.EncodingMJPEG:
		d.bufSize = req.Pixels.PixelCount()*3 + 4096
	default:
		return capture.Format{}, fmt.Errorf("unsupported encoding %s", req.Encoding)
	}
	d.format = req
	return req, nil
}

func (d *Device) AllocateBuffers(count int) ([][]byte, error) {
	if d.bufSize == 0 {
		return nil, errors.New("device not configured")
	}
	d.buffers = make([][]byte, count)
	for i := range d.buffers {
		d.buffers[i] = make([]byte, d.bufSize)
	}
	return d.buffers, nil
}

func (d *Device) Arm(index int) error {
	return d.enqueue(index)
}

func (d *Device) enqueue(index int) error {
	if index < 0 || index >= len(d.buffers) {
		return fmt.Errorf("buffer %d out of range", index)
	}
	for _, q := range d.queue {
		if q == index {
			return fmt.Errorf("buffer %d already queued", index)
		}
	}
	d.queue = append(d.queue, index)
	return nil
}

func (d *Device) StartStreaming() error {
	if len(d.queue) == 0 {
		return errors.New("no buffers queued")
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return err
	}
	if err := socket.SetRcvtimeo(recvPoll); err != nil {
		_ = socket.Close()
		return err
	}
	if err := socket.Connect(d.endpoint); err != nil {
		_ = socket.Close()
		return err
	}

	d.frames = make(chan message, pendingDepth)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.receive(socket)
	return nil
}

func (d *Device) receive(socket *zmq4.Socket) {
	defer close(d.done)
	defer socket.Close()

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		payload, err := socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			logEveryN(d.logEvery, "ingest recv error: %v", err)
			continue
		}

		msg, err := decodeMessage(payload)
		if err != nil {
			d.dropped.Add(1)
			logEveryN(d.logEvery, "ingest skipped message: %v", err)
			continue
		}
		if err := d.accepts(msg); err != nil {
			d.dropped.Add(1)
			logEveryN(d.logEvery, "ingest skipped frame %d: %v", msg.Seq, err)
			continue
		}

		select {
		case <-d.stop:
			return
		case d.frames <- msg:
		default:
			// The consumer is behind; keep the newest frames.
			select {
			case <-d.frames:
				d.dropped.Add(1)
			default:
			}
			d.frames <- msg
		}
	}
}

func (d *Device) accepts(msg message) error {
	if msg.Width != d.format.Pixels.Width || msg.Height != d.format.Pixels.Height {
		return fmt.Errorf("size %dx%d, want %s", msg.Width, msg.Height, d.format.Pixels)
	}
	if msg.Encoding != d.format.Encoding {
		return fmt.Errorf("encoding %s, want %s", msg.Encoding, d.format.Encoding)
	}
	if len(msg.Data) > d.bufSize {
		return fmt.Errorf("%d bytes exceed buffer of %d", len(msg.Data), d.bufSize)
	}
	return nil
}

func (d *Device) AcquireNext(ctx context.Context) (int, int, error) {
	if d.frames == nil {
		return 0, 0, errors.New("not streaming")
	}
	if len(d.queue) == 0 {
		return 0, 0, errors.New("no buffer queued for capture")
	}
	var timeout <-chan time.Time
	if d.timeout > 0 {
		timer := time.NewTimer(d.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var msg message
	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case <-timeout:
		return 0, 0, fmt.Errorf("%w within %s from %s", ErrTimeout, d.timeout, d.endpoint)
	case msg = <-d.frames:
	}

	index := d.queue[0]
	d.queue = d.queue[1:]
	return index, copy(d.buffers[index], msg.Data), nil
}

func (d *Device) Release(index int) error {
	return d.enqueue(index)
}

func (d *Device) Teardown() error {
	if d.stop != nil {
		d.once.Do(func() { close(d.stop) })
		<-d.done
	}
	d.buffers = nil
	d.queue = nil
	return nil
}

func decodeMessage(payload []byte) (message, error) {
	var raw map[string]any
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return message{}, fmt.Errorf("cbor: %w", err)
	}

	msgType, _ := raw["type"].(string)
	if msgType != "frame" {
		return message{}, fmt.Errorf("ignoring message type %q", msgType)
	}

	var msg message
	var err error
	if msg.Seq, err = toInt(raw["seq"]); err != nil {
		return message{}, fmt.Errorf("invalid seq: %w", err)
	}
	if msg.Width, err = toInt(raw["width"]); err != nil {
		return message{}, fmt.Errorf("invalid width: %w", err)
	}
	if msg.Height, err = toInt(raw["height"]); err != nil {
		return message{}, fmt.Errorf("invalid height: %w", err)
	}
	name, _ := raw["encoding"].(string)
	if msg.Encoding, err = frame.ParseEncoding(name); err != nil {
		return message{}, err
	}
	if msg.Data, err = frameBytes(raw["data"]); err != nil {
		return message{}, fmt.Errorf("invalid data: %w", err)
	}
	return msg, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

var logCounter atomic.Uint64

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}
