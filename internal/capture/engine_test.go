package capture

import (
	"context"
	"errors"
	"testing"

	"dotsnatch-go/internal/frame"
)

type fakeDevice struct {
	failConfigure bool
	failAlloc     bool
	shortAlloc    bool
	failArm       int
	failStart     bool
	failAcquire   bool

	queue     []int
	released  []int
	tornDown  int
	streaming bool
	buffers   [][]byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{failArm: -1}
}

func (d *fakeDevice) Configure(req Format) (Format, error) {
	if d.failConfigure {
		return Format{}, errors.New("unsupported")
	}
	actual := req
	actual.Pixels.Width = 8
	return actual, nil
}

func (d *fakeDevice) AllocateBuffers(count int) ([][]byte, error) {
	if d.failAlloc {
		return nil, errors.New("no memory")
	}
	if d.shortAlloc {
		count--
	}
	d.buffers = make([][]byte, count)
	for i := range d.buffers {
		d.buffers[i] = make([]byte, 16)
	}
	return d.buffers, nil
}

func (d *fakeDevice) Arm(index int) error {
	if index == d.failArm {
		return errors.New("queue full")
	}
	d.queue = append(d.queue, index)
	return nil
}

func (d *fakeDevice) StartStreaming() error {
	if d.failStart {
		return errors.New("busy")
	}
	d.streaming = true
	return nil
}

func (d *fakeDevice) AcquireNext(ctx context.Context) (int, int, error) {
	if d.failAcquire {
		return 0, 0, errors.New("timeout")
	}
	if len(d.queue) == 0 {
		return 0, 0, errors.New("nothing queued")
	}
	index := d.queue[0]
	d.queue = d.queue[1:]
	d.buffers[index][0] = byte(index + 1)
	return index, 4, nil
}

func (d *fakeDevice) Release(index int) error {
	d.released = append(d.released, index)
	d.queue = append(d.queue, index)
	return nil
}

func (d *fakeDevice) Teardown() error {
	d.tornDown++
	d.streaming = false
	return nil
}

func request() Format {
	return Format{Pixels: frame.PixelFormat{Width: 4, Height: 2}, Encoding: frame.EncodingYUYV}
}

func TestEngineLifecycle(t *testing.T) {
	dev := newFakeDevice()
	engine := NewEngine(dev)
	if engine.State() != StateUninitialized {
		t.Fatalf("unexpected initial state %s", engine.State())
	}
	if engine.SessionID() == "" {
		t.Fatalf("missing session id")
	}

	actual, err := engine.Open(request())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if actual.Pixels.Width != 8 {
		t.Fatalf("engine should report the negotiated format, got %v", actual.Pixels)
	}
	if engine.State() != StateStreaming {
		t.Fatalf("unexpected state after open: %s", engine.State())
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		raw, err := engine.AcquireNext(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if raw.Index != i%2 {
			t.Fatalf("frame %d used buffer %d", i, raw.Index)
		}
		if len(raw.Data) != 4 || raw.Data[0] != byte(raw.Index+1) {
			t.Fatalf("unexpected frame data %v", raw.Data)
		}
		if raw.Seq != uint64(i+1) {
			t.Fatalf("unexpected seq %d", raw.Seq)
		}
		if err := engine.Release(raw.Index); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}

	stats := engine.Stats()
	if stats.Acquired != 4 || stats.State != "released" {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := engine.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if err := engine.Teardown(); err != nil {
		t.Fatalf("second teardown: %v", err)
	}
	if dev.tornDown != 1 {
		t.Fatalf("device torn down %d times", dev.tornDown)
	}
}

func TestEngineSingleHeldBuffer(t *testing.T) {
	engine := NewEngine(newFakeDevice())
	if _, err := engine.Open(request()); err != nil {
		t.Fatalf("open: %v", err)
	}
	raw, err := engine.AcquireNext(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := engine.AcquireNext(context.Background()); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState on double acquire, got %v", err)
	}
	if err := engine.Release(1 - raw.Index); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState when releasing the wrong buffer, got %v", err)
	}
	if err := engine.Release(raw.Index); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := engine.Release(raw.Index); !errors.Is(err, ErrState) {
		t.Fatalf("expected ErrState on double release, got %v", err)
	}
}

func TestEngineSetupErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDevice)
		want  error
	}{
		{"configure", func(d *fakeDevice) { d.failConfigure = true }, ErrDeviceConfig},
		{"allocate", func(d *fakeDevice) { d.failAlloc = true }, ErrBufferAlloc},
		{"short allocate", func(d *fakeDevice) { d.shortAlloc = true }, ErrBufferAlloc},
		{"arm", func(d *fakeDevice) { d.failArm = 1 }, ErrQueue},
		{"start", func(d *fakeDevice) { d.failStart = true }, ErrStreamStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			tt.setup(dev)
			engine := NewEngine(dev)
			_, err := engine.Open(request())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if engine.State() != StateClosed || dev.tornDown != 1 {
				t.Fatalf("failed open should tear down, state=%s teardowns=%d", engine.State(), dev.tornDown)
			}
		})
	}
}

func TestEngineAcquireError(t *testing.T) {
	dev := newFakeDevice()
	engine := NewEngine(dev)
	if _, err := engine.Open(request()); err != nil {
		t.Fatalf("open: %v", err)
	}
	dev.failAcquire = true
	if _, err := engine.AcquireNext(context.Background()); !errors.Is(err, ErrAcquire) {
		t.Fatalf("expected ErrAcquire, got %v", err)
	}
	if engine.Stats().AcquireErrors != 1 {
		t.Fatalf("acquire error not counted")
	}
}

func TestEngineOrderEnforced(t *testing.T) {
	engine := NewEngine(newFakeDevice())
	if err := engine.AllocateBuffers(2); !errors.Is(err, ErrState) {
		t.Fatalf("allocate before configure should fail with ErrState, got %v", err)
	}
	if _, err := engine.AcquireNext(context.Background()); !errors.Is(err, ErrState) {
		t.Fatalf("acquire before streaming should fail with ErrState, got %v", err)
	}
	if _, err := engine.Configure(request()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.AllocateBuffers(2); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := engine.StartStreaming(); !errors.Is(err, ErrStreamStart) {
		t.Fatalf("start without armed buffers should fail, got %v", err)
	}
	if err := engine.Arm(0); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := engine.Arm(0); !errors.Is(err, ErrQueue) {
		t.Fatalf("double arm should fail with ErrQueue, got %v", err)
	}
	if err := engine.Arm(5); !errors.Is(err, ErrQueue) {
		t.Fatalf("out of range arm should fail with ErrQueue, got %v", err)
	}
}
