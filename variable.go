package vs

import (
	"fmt"
	"math"
	"sort"
)

// DynamicVariable produces time-driven values for named buffers. Produce
// is called once per frame with the frame time in seconds.
type DynamicVariable interface {
	Key() string
	Produce(now float64) map[string][]float32
}

// VariableSpec describes a dynamic variable: a "type" plus type-specific
// parameters, as found in a script's variables section.
type VariableSpec map[string]any

// Type returns the variable type, or "" when missing.
func (s VariableSpec) Type() string {
	t, _ := s["type"].(string)
	return t
}

// number returns the first numeric parameter among names.
func (s VariableSpec) number(def float64, names ...string) float64 {
	for _, name := range names {
		if v, ok := toFloat(s[name]); ok {
			return v
		}
	}
	return def
}

// SinVariable is a sinusoid normalised to [offset, offset+amplitude]:
//
//	offset + amplitude * (sin(2π(freq*t + phase)) + 1) / 2
//
// With the defaults (freq 1, amplitude 1, phase 0, offset 0) it peaks at
// 1 for t = 0.25.
type SinVariable struct {
	Name      string
	Freq      float64
	Amplitude float64
	Phase     float64
	Offset    float64
}

// NewSinVariable builds a SinVariable from the parameters freq (alias
// frequency), amplitude (alias amp), phase and offset.
func NewSinVariable(key string, spec VariableSpec) *SinVariable {
	return &SinVariable{
		Name:      key,
		Freq:      spec.number(1, "freq", "frequency"),
		Amplitude: spec.number(1, "amplitude", "amp"),
		Phase:     spec.number(0, "phase"),
		Offset:    spec.number(0, "offset"),
	}
}

// Key returns the named buffer key the variable feeds.
func (v *SinVariable) Key() string { return v.Name }

// Value evaluates the signal at now.
func (v *SinVariable) Value(now float64) float64 {
	s := math.Sin(2 * math.Pi * (v.Freq*now + v.Phase))
	return v.Offset + v.Amplitude*(s+1)/2
}

// Produce returns the single value under the variable's key.
func (v *SinVariable) Produce(now float64) map[string][]float32 {
	return map[string][]float32{v.Name: {float32(v.Value(now))}}
}

func (v *SinVariable) String() string {
	return fmt.Sprintf("sin(%s: freq=%g amp=%g phase=%g offset=%g)", v.Name, v.Freq, v.Amplitude, v.Phase, v.Offset)
}

// buildVariables creates the variables of a script in key order. Unknown
// or missing types are logged and skipped.
func buildVariables(specs map[string]VariableSpec) []DynamicVariable {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]DynamicVariable, 0, len(keys))
	for _, key := range keys {
		spec := specs[key]
		switch spec.Type() {
		case "sin":
			vars = append(vars, NewSinVariable(key, spec))
		default:
			Logger().Warn("vs: ignoring variable of unknown type", "key", key, "type", spec.Type())
		}
	}
	return vars
}

// evaluate merges the output of every variable at now. Later variables
// overwrite earlier ones on key collisions.
func evaluate(vars []DynamicVariable, now float64) map[string][]float32 {
	out := make(map[string][]float32, len(vars))
	for _, v := range vars {
		for k, val := range v.Produce(now) {
			out[k] = val
		}
	}
	return out
}

// toFloat converts the numeric types produced by JSON, TOML and Go
// literals.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
