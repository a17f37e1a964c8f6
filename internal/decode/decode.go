// Package decode turns raw capture buffers into RGB grids.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"dotsnatch-go/internal/colorconv"
	"dotsnatch-go/internal/frame"
)

// ErrDecode marks a malformed frame. It is frame-local: the caller drops the
// frame and keeps going.
var ErrDecode = errors.New("frame decode failed")

// PlaneDecoder decodes a compressed frame into luma and chroma planes.
type PlaneDecoder interface {
	DecodePlanes(data []byte, width, height int) (*image.YCbCr, error)
}

// JPEGPlanes decodes baseline and progressive JPEG with image/jpeg. Grayscale
// frames are returned with neutral chroma.
type JPEGPlanes struct{}

func (JPEGPlanes) DecodePlanes(data []byte, width, height int) (*image.YCbCr, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("jpeg is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	switch m := img.(type) {
	case *image.YCbCr:
		return m, nil
	case *image.Gray:
		out := image.NewYCbCr(b, image.YCbCrSubsampleRatio444)
		for y := 0; y < height; y++ {
			copy(out.Y[y*out.YStride:y*out.YStride+width], m.Pix[y*m.Stride:y*m.Stride+width])
		}
		for i := range out.Cb {
			out.Cb[i] = 128
			out.Cr[i] = 128
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported jpeg color model %T", img)
	}
}

// Decoder converts frames of one format into a reusable RGB arena. The grid
// returned by Decode is overwritten by the next call.
type Decoder struct {
	format   frame.PixelFormat
	encoding frame.Encoding
	planes   PlaneDecoder
	grid     *frame.Grid
}

func New(format frame.PixelFormat, encoding frame.Encoding, planes PlaneDecoder) *Decoder {
	if planes == nil {
		planes = JPEGPlanes{}
	}
	return &Decoder{
		format:   format,
		encoding: encoding,
		planes:   planes,
		grid:     frame.NewGrid(format),
	}
}

func (d *Decoder) Format() frame.PixelFormat {
	return d.format
}

func (d *Decoder) Decode(raw []byte) (*frame.Grid, error) {
	var err error
	switch d.encoding {
	case frame.EncodingYUYV:
		err = d.decodeYUYV(raw)
	case frame.EncodingMJPEG:
		err = d.decodeMJPEG(raw)
	default:
		err = fmt.Errorf("unsupported encoding %s", d.encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return d.grid, nil
}

func (d *Decoder) decodeYUYV(raw []byte) error {
	want := frame.EncodingYUYV.FrameSize(d.format)
	if len(raw) < want {
		return fmt.Errorf("yuyv frame has %d bytes, need %d", len(raw), want)
	}
	if d.format.Width%2 != 0 {
		return fmt.Errorf("yuyv requires an even width, got %d", d.format.Width)
	}
	pix := d.grid.Pix
	for i, j := 0, 0; j < len(pix); i, j = i+4, j+2 {
		pix[j], pix[j+1] = colorconv.YUYVPairToRGB(raw[i], raw[i+1], raw[i+2], raw[i+3])
	}
	return nil
}

func (d *Decoder) decodeMJPEG(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("empty mjpeg frame")
	}
	ycc, err := d.planes.DecodePlanes(raw, d.format.Width, d.format.Height)
	if err != nil {
		return err
	}
	return PlanesToRGB(ycc, d.grid)
}

// PlanesToRGB converts luma/chroma planes into grid. Horizontally subsampled
// layouts are walked in pairs so both luma samples share one chroma lookup.
func PlanesToRGB(ycc *image.YCbCr, grid *frame.Grid) error {
	b := ycc.Rect
	w, h := grid.Format.Width, grid.Format.Height
	if b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("planes are %dx%d, grid is %s", b.Dx(), b.Dy(), grid.Format)
	}
	paired := ycc.SubsampleRatio != image.YCbCrSubsampleRatio444 &&
		ycc.SubsampleRatio != image.YCbCrSubsampleRatio440
	pix := grid.Pix
	for y := 0; y < h; y++ {
		row := y * w
		x := 0
		if paired {
			for ; x+1 < w; x += 2 {
				yi := ycc.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := ycc.COffset(b.Min.X+x, b.Min.Y+y)
				pix[row+x], pix[row+x+1] = colorconv.YUYVPairToRGB(ycc.Y[yi], ycc.Cb[ci], ycc.Y[yi+1], ycc.Cr[ci])
			}
		}
		for ; x < w; x++ {
			yi := ycc.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := ycc.COffset(b.Min.X+x, b.Min.Y+y)
			pix[row+x] = colorconv.YCbCrToRGB(ycc.Y[yi], ycc.Cb[ci], ycc.Cr[ci])
		}
	}
	return nil
}
