// Package zone maps a detected position to a directional label.
package zone

import (
	"errors"
	"fmt"
	"image"

	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
)

// None is the label for an idle frame.
const None = "none"

// Zone is an axis-aligned rectangle with inclusive edges.
type Zone struct {
	Name  string `json:"name" yaml:"name"`
	North int    `json:"north" yaml:"north"`
	South int    `json:"south" yaml:"south"`
	East  int    `json:"east" yaml:"east"`
	West  int    `json:"west" yaml:"west"`
}

func (z Zone) Validate() error {
	if z.Name == "" {
		return errors.New("zone has no name")
	}
	if z.Name == None {
		return fmt.Errorf("zone name %q is reserved", None)
	}
	if z.North > z.South {
		return fmt.Errorf("zone %q: north %d below south %d", z.Name, z.North, z.South)
	}
	if z.West > z.East {
		return fmt.Errorf("zone %q: west %d right of east %d", z.Name, z.West, z.East)
	}
	return nil
}

func (z Zone) Contains(p image.Point) bool {
	return p.X >= z.West && p.X <= z.East && p.Y >= z.North && p.Y <= z.South
}

// Intersects reports whether two zones share at least one pixel.
func (z Zone) Intersects(o Zone) bool {
	return z.East >= o.West && z.West <= o.East && z.South >= o.North && z.North <= o.South
}

// Classifier holds an immutable, priority-ordered zone list.
type Classifier struct {
	zones []Zone
}

func NewClassifier(zones []Zone) (*Classifier, error) {
	seen := make(map[string]bool, len(zones))
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if seen[z.Name] {
			return nil, fmt.Errorf("duplicate zone %q", z.Name)
		}
		seen[z.Name] = true
	}
	return &Classifier{zones: append([]Zone(nil), zones...)}, nil
}

func (c *Classifier) Zones() []Zone {
	return append([]Zone(nil), c.zones...)
}

// Classify returns the first zone containing the position, or None when the
// confidence does not clear the threshold.
func (c *Classifier) Classify(pos image.Point, confidence, threshold float64) string {
	if confidence-threshold <= 0 {
		return None
	}
	for _, z := range c.zones {
		if z.Contains(pos) {
			return z.Name
		}
	}
	return None
}

func (c *Classifier) ClassifyResult(res detect.Result, threshold float64) string {
	if !res.Found {
		return None
	}
	return c.Classify(res.Position, res.Confidence, threshold)
}

// Overlaps lists pairs of zones that share pixels. Overlap is allowed; the
// caller logs it so the priority order is a visible decision.
func (c *Classifier) Overlaps() [][2]string {
	var out [][2]string
	for i := 0; i < len(c.zones); i++ {
		for j := i + 1; j < len(c.zones); j++ {
			if c.zones[i].Intersects(c.zones[j]) {
				out = append(out, [2]string{c.zones[i].Name, c.zones[j].Name})
			}
		}
	}
	return out
}

// Defaults splits the frame into forward (top third), back (bottom third) and
// left/right halves of the middle band. Left and right share the center column.
func Defaults(f frame.PixelFormat) []Zone {
	third := f.Height / 3
	midX := f.Width / 2
	return []Zone{
		{Name: "forward", North: 0, South: third - 1, West: 0, East: f.Width - 1},
		{Name: "back", North: f.Height - third, South: f.Height - 1, West: 0, East: f.Width - 1},
		{Name: "left", North: third, South: f.Height - third - 1, West: 0, East: midX},
		{Name: "right", North: third, South: f.Height - third - 1, West: midX, East: f.Width - 1},
	}
}
