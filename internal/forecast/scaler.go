package forecast

// MinMaxScaler maps values linearly onto [0, 1] using the observed range.
// A zero range uses scale 1, so values shift by the minimum only.
type MinMaxScaler struct {
	min   float64
	scale float64
}

// FitMinMax fits a scaler to values. values must be non-empty.
func FitMinMax(values []float64) MinMaxScaler {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 1.0
	if r := hi - lo; r != 0 {
		scale = 1 / r
	}
	return MinMaxScaler{min: lo, scale: scale}
}

// Transform maps v into scaled units.
func (s MinMaxScaler) Transform(v float64) float64 { return (v - s.min) * s.scale }

// Inverse maps a scaled value back to the original units.
func (s MinMaxScaler) Inverse(v float64) float64 { return v/s.scale + s.min }

// TransformAll returns a scaled copy of values.
func (s MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}
