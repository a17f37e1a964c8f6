package detect

import (
	"fmt"
	"math"
	"sort"
)

// AdjustOp mirrors the live tuning increments: additive, multiplicative and toggle.
type AdjustOp string

const (
	OpAdd    AdjustOp = "add"
	OpScale  AdjustOp = "scale"
	OpToggle AdjustOp = "toggle"
	OpSet    AdjustOp = "set"
)

type knob struct {
	get func(*Params) float64
	set func(*Params, float64)
}

func floatKnob(field func(*Params) *float64) knob {
	return knob{
		get: func(p *Params) float64 { return *field(p) },
		set: func(p *Params, v float64) { *field(p) = v },
	}
}

// intKnob rounds stepwise values to whole units.
func intKnob(field func(*Params) *int) knob {
	return knob{
		get: func(p *Params) float64 { return float64(*field(p)) },
		set: func(p *Params, v float64) { *field(p) = int(math.Round(v)) },
	}
}

var knobs = map[string]knob{
	"scan_radius":   floatKnob(func(p *Params) *float64 { return &p.ScanRadius }),
	"sample_step":   intKnob(func(p *Params) *int { return &p.SampleStep }),
	"skip_len":      intKnob(func(p *Params) *int { return &p.SkipLen }),
	"ref_hue":       floatKnob(func(p *Params) *float64 { return &p.RefHue }),
	"filter_hue":    floatKnob(func(p *Params) *float64 { return &p.FilterHue }),
	"filter_sat":    floatKnob(func(p *Params) *float64 { return &p.FilterSat }),
	"filter_val":    floatKnob(func(p *Params) *float64 { return &p.FilterVal }),
	"core_value":    floatKnob(func(p *Params) *float64 { return &p.CoreValue }),
	"halo_value":    floatKnob(func(p *Params) *float64 { return &p.HaloValue }),
	"sat_curve":     floatKnob(func(p *Params) *float64 { return &p.SatCurve }),
	"val_curve":     floatKnob(func(p *Params) *float64 { return &p.ValCurve }),
	"h_str":         floatKnob(func(p *Params) *float64 { return &p.HueStrength }),
	"s_str":         floatKnob(func(p *Params) *float64 { return &p.SatStrength }),
	"v_str":         floatKnob(func(p *Params) *float64 { return &p.ValStrength }),
	"white_penalty": floatKnob(func(p *Params) *float64 { return &p.WhitePenalty }),
	"white_falloff": floatKnob(func(p *Params) *float64 { return &p.WhiteFalloff }),
	"white_curve":   floatKnob(func(p *Params) *float64 { return &p.WhiteCurve }),
	"workers":       intKnob(func(p *Params) *int { return &p.Workers }),
	"dot_threshold": floatKnob(func(p *Params) *float64 { return &p.Threshold }),
}

func KnobNames() []string {
	names := make([]string, 0, len(knobs))
	for name := range knobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adjust applies one increment to the named knob and returns the clamped result.
func (p Params) Adjust(name string, op AdjustOp, step float64) (Params, error) {
	k, ok := knobs[name]
	if !ok {
		return p, fmt.Errorf("unknown parameter %q", name)
	}
	current := k.get(&p)
	var next float64
	switch op {
	case OpAdd:
		next = current + step
	case OpScale:
		next = current * step
	case OpToggle:
		next = 0
		if current == 0 {
			next = 1
		}
	case OpSet:
		next = step
	default:
		return p, fmt.Errorf("unknown adjust op %q", op)
	}
	if next < 0 {
		next = 0
	}
	k.set(&p, next)
	return p.Clamped(), nil
}
