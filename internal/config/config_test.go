package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/zone"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dotsnatch.yaml")
	body := `
device:
  source: sim
  width: 320
  height: 240
  encoding: mjpeg
params:
  scan_radius: 12
  h_str: -4
zones:
  - name: left
    north: 0
    south: 239
    west: 0
    east: 159
  - name: right
    north: 0
    south: 239
    west: 160
    east: 319
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := Load(path, detect.DefaultParams())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Params.ScanRadius != 12 {
		t.Fatalf("scan_radius not read: %v", fc.Params.ScanRadius)
	}
	if fc.Params.SkipLen != detect.DefaultParams().SkipLen {
		t.Fatalf("unset params should keep defaults, skip_len=%d", fc.Params.SkipLen)
	}
	if fc.Params.HueStrength != 0 {
		t.Fatalf("negative knob should be clamped, got %v", fc.Params.HueStrength)
	}
	if len(fc.Zones) != 2 || fc.Zones[1].Name != "right" || fc.Zones[1].West != 160 {
		t.Fatalf("unexpected zones %+v", fc.Zones)
	}

	cfg := AppConfig{Width: 640}
	cfg.Apply(fc)
	if cfg.Source != "sim" || cfg.Encoding != "mjpeg" || cfg.Height != 240 {
		t.Fatalf("file device settings not applied: %+v", cfg)
	}
	if cfg.Width != 640 {
		t.Fatalf("flag value should win over file, got %d", cfg.Width)
	}

	var bare AppConfig
	bare.FillDefaults()
	if bare.Source != "sim" || bare.Width != 640 || bare.Height != 480 || bare.Encoding != "yuyv" {
		t.Fatalf("unexpected defaults %+v", bare)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), detect.DefaultParams()); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("params: [1, 2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, detect.DefaultParams()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	params := detect.DefaultParams()
	params.FilterHue = 22
	zones := []zone.Zone{{Name: "forward", South: 10, East: 20}}
	if err := Save(path, params, zones); err != nil {
		t.Fatalf("save: %v", err)
	}
	fc, err := Load(path, detect.Params{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *fc.Params != params {
		t.Fatalf("params differ after save: %+v", *fc.Params)
	}
	if len(fc.Zones) != 1 || fc.Zones[0] != zones[0] {
		t.Fatalf("zones differ after save: %+v", fc.Zones)
	}
}

func TestParamStore(t *testing.T) {
	store := NewParamStore(detect.DefaultParams())
	if store.Snapshot() != detect.DefaultParams() {
		t.Fatalf("initial snapshot mismatch")
	}

	snap := store.Snapshot()
	next, err := store.Adjust("scan_radius", detect.OpScale, 0.5)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if next.ScanRadius != 10 || store.Snapshot().ScanRadius != 10 {
		t.Fatalf("adjust not stored: %+v", next)
	}
	if snap.ScanRadius != 20 {
		t.Fatalf("earlier snapshot was mutated")
	}
	if store.Version() != 1 {
		t.Fatalf("version = %d", store.Version())
	}

	replaced := store.Replace(detect.Params{Workers: -3})
	if replaced.Workers != 1 {
		t.Fatalf("replace should clamp, got %+v", replaced)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = store.Adjust("skip_len", detect.OpAdd, 1)
				_ = store.Snapshot()
			}
		}()
	}
	wg.Wait()
	if got := store.Snapshot().SkipLen; got != 800 {
		t.Fatalf("concurrent adjusts lost updates: skip_len=%d", got)
	}
}
