package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
	"dotsnatch-go/internal/zone"
)

func testGrid() *frame.Grid {
	g := frame.NewGrid(frame.PixelFormat{Width: 160, Height: 120})
	g.Fill(colorconv.RGB{R: 20, G: 20, B: 60})
	return g
}

func TestOverlayDrawsZonesAndRing(t *testing.T) {
	grid := testGrid()
	params := detect.DefaultParams()
	zones := zone.Defaults(grid.Format)
	res := detect.Result{Position: image.Pt(80, 60), Confidence: 120, Found: true}

	img := Overlay(grid, res, zones, params)
	if got := img.NRGBAAt(0, 0); got != zoneColor {
		t.Fatalf("zone corner not outlined: %v", got)
	}
	if got := img.NRGBAAt(80+int(params.ScanRadius), 60); got != hitColor {
		t.Fatalf("ring not drawn at radius: %v", got)
	}
	if got := img.NRGBAAt(80, 60); got == hitColor {
		t.Fatalf("ring center should be untouched")
	}
	if got := grid.RGBAt(0, 0); got != (colorconv.RGB{R: 20, G: 20, B: 60}) {
		t.Fatalf("overlay modified the source grid: %v", got)
	}

	weak := Overlay(grid, detect.Result{Position: image.Pt(80, 60), Confidence: 1, Found: true}, nil, params)
	if got := weak.NRGBAAt(80+int(params.ScanRadius), 60); got != weakColor {
		t.Fatalf("weak detection color: %v", got)
	}
	none := Overlay(grid, detect.NotFound(), nil, params)
	if got := none.NRGBAAt(80+int(params.ScanRadius), 60); got == hitColor || got == weakColor {
		t.Fatalf("ring drawn for missing detection")
	}
}

func TestThumbnail(t *testing.T) {
	img := Overlay(testGrid(), detect.NotFound(), nil, detect.DefaultParams())
	if got := Thumbnail(img, 80).Bounds(); got.Dx() != 80 || got.Dy() != 60 {
		t.Fatalf("thumbnail bounds %v", got)
	}
	if got := Thumbnail(img, 320).Bounds(); got.Dx() != 160 {
		t.Fatalf("upscaled to %v", got)
	}
}

func TestStoreCapture(t *testing.T) {
	params := detect.DefaultParams()
	store := NewStore(64, time.Hour, nil, func() detect.Params { return params })
	if _, _, ok := store.Latest(); ok {
		t.Fatalf("empty store reported a preview")
	}

	store.Capture(3, testGrid(), detect.NotFound())
	data, seq, ok := store.Latest()
	if !ok || seq != 3 {
		t.Fatalf("latest seq=%d ok=%v", seq, ok)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("preview bounds %v", img.Bounds())
	}

	store.Capture(4, testGrid(), detect.NotFound())
	if _, seq, _ := store.Latest(); seq != 3 {
		t.Fatalf("capture inside the interval replaced the preview: seq=%d", seq)
	}
}
