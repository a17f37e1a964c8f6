package frame

import (
	"fmt"
	"image"
	"image/color"

	"dotsnatch-go/internal/colorconv"
)

// PixelFormat is fixed for the lifetime of a capture session.
type PixelFormat struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func NewPixelFormat(width, height int) (PixelFormat, error) {
	if width <= 0 || height <= 0 {
		return PixelFormat{}, fmt.Errorf("invalid pixel format %dx%d", width, height)
	}
	return PixelFormat{Width: width, Height: height}, nil
}

func (f PixelFormat) PixelCount() int {
	return f.Width * f.Height
}

func (f PixelFormat) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Point converts a linear pixel index to (x, y).
func (f PixelFormat) Point(index int) image.Point {
	return image.Point{X: index % f.Width, Y: index / f.Width}
}

// Grid is a row-major RGB pixel arena sized once from a PixelFormat and reused
// across frames. It satisfies image.Image so display collaborators can consume it.
type Grid struct {
	Format PixelFormat
	Pix    []colorconv.RGB
}

func NewGrid(format PixelFormat) *Grid {
	return &Grid{
		Format: format,
		Pix:    make([]colorconv.RGB, format.PixelCount()),
	}
}

func (g *Grid) Set(x, y int, c colorconv.RGB) {
	g.Pix[y*g.Format.Width+x] = c
}

func (g *Grid) RGBAt(x, y int) colorconv.RGB {
	return g.Pix[y*g.Format.Width+x]
}

func (g *Grid) Fill(c colorconv.RGB) {
	for i := range g.Pix {
		g.Pix[i] = c
	}
}

// Clone returns a copy that outlives the current frame.
func (g *Grid) Clone() *Grid {
	out := &Grid{Format: g.Format, Pix: make([]colorconv.RGB, len(g.Pix))}
	copy(out.Pix, g.Pix)
	return out
}

func (g *Grid) ColorModel() color.Model {
	return color.RGBAModel
}

func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Format.Width, g.Format.Height)
}

func (g *Grid) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= g.Format.Width || y >= g.Format.Height {
		return color.RGBA{}
	}
	c := g.RGBAt(x, y)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// CopyFrom converts any image into the grid. The image bounds must match the format.
func (g *Grid) CopyFrom(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != g.Format.Width || b.Dy() != g.Format.Height {
		return fmt.Errorf("image is %dx%d, grid is %s", b.Dx(), b.Dy(), g.Format)
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gg, bb, _ := img.At(x, y).RGBA()
			g.Pix[i] = colorconv.RGB{R: uint8(r >> 8), G: uint8(gg >> 8), B: uint8(bb >> 8)}
			i++
		}
	}
	return nil
}
