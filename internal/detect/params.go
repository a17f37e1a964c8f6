package detect

import "math"

// Params is the tunable knob set for one detection call. The detector reads a
// snapshot per frame and never mutates it.
type Params struct {
	ScanRadius float64 `json:"scan_radius" yaml:"scan_radius"`
	SampleStep int     `json:"sample_step" yaml:"sample_step"`
	SkipLen    int     `json:"skip_len" yaml:"skip_len"`

	RefHue    float64 `json:"ref_hue" yaml:"ref_hue"`
	FilterHue float64 `json:"filter_hue" yaml:"filter_hue"`
	FilterSat float64 `json:"filter_sat" yaml:"filter_sat"`
	FilterVal float64 `json:"filter_val" yaml:"filter_val"`

	CoreValue float64 `json:"core_value" yaml:"core_value"`
	HaloValue float64 `json:"halo_value" yaml:"halo_value"`
	SatCurve  float64 `json:"sat_curve" yaml:"sat_curve"`
	ValCurve  float64 `json:"val_curve" yaml:"val_curve"`

	HueStrength float64 `json:"h_str" yaml:"h_str"`
	SatStrength float64 `json:"s_str" yaml:"s_str"`
	ValStrength float64 `json:"v_str" yaml:"v_str"`

	WhitePenalty float64 `json:"white_penalty" yaml:"white_penalty"`
	WhiteFalloff float64 `json:"white_falloff" yaml:"white_falloff"`
	WhiteCurve   float64 `json:"white_curve" yaml:"white_curve"`

	Workers   int     `json:"workers" yaml:"workers"`
	Threshold float64 `json:"dot_threshold" yaml:"dot_threshold"`
}

func DefaultParams() Params {
	return Params{
		ScanRadius:   20,
		SampleStep:   2,
		SkipLen:      7,
		RefHue:       0,
		FilterHue:    30,
		FilterSat:    0.45,
		FilterVal:    0.85,
		CoreValue:    1.0,
		HaloValue:    0.6,
		SatCurve:     1.0,
		ValCurve:     1.5,
		HueStrength:  1.0,
		SatStrength:  1.5,
		ValStrength:  2.0,
		WhitePenalty: 0.8,
		WhiteFalloff: 0.25,
		WhiteCurve:   2.0,
		Workers:      4,
		Threshold:    40,
	}
}

// Clamped returns a copy with every knob forced non-negative. Stride and worker
// count are additionally held at 1 or more so a scan always progresses.
func (p Params) Clamped() Params {
	nonNeg := func(v float64) float64 {
		if v < 0 || math.IsNaN(v) {
			return 0
		}
		return v
	}
	p.ScanRadius = nonNeg(p.ScanRadius)
	p.RefHue = math.Mod(nonNeg(p.RefHue), 360)
	p.FilterHue = nonNeg(p.FilterHue)
	p.FilterSat = nonNeg(p.FilterSat)
	p.FilterVal = nonNeg(p.FilterVal)
	p.CoreValue = nonNeg(p.CoreValue)
	p.HaloValue = nonNeg(p.HaloValue)
	p.SatCurve = nonNeg(p.SatCurve)
	p.ValCurve = nonNeg(p.ValCurve)
	p.HueStrength = nonNeg(p.HueStrength)
	p.SatStrength = nonNeg(p.SatStrength)
	p.ValStrength = nonNeg(p.ValStrength)
	p.WhitePenalty = nonNeg(p.WhitePenalty)
	p.WhiteFalloff = nonNeg(p.WhiteFalloff)
	p.WhiteCurve = nonNeg(p.WhiteCurve)
	p.Threshold = nonNeg(p.Threshold)
	if p.SkipLen < 0 {
		p.SkipLen = 0
	}
	if p.SampleStep < 1 {
		p.SampleStep = 1
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return p
}
