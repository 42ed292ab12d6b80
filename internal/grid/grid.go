package grid

import "math"

// floatTolerance absorbs the drift of stepped float enumeration when
// comparing threshold values.
const floatTolerance = 1e-9

// Combination is one (entry, exit) threshold pair. Immutable value.
type Combination struct {
	Entry float64
	Exit  float64
}

// Config bounds the threshold enumeration.
type Config struct {
	EntryMin  float64
	EntryMax  float64
	EntryStep float64
	ExitMin   float64
	ExitMax   float64
	ExitStep  float64
}

// Generate enumerates the threshold grid: entries over
// [EntryMin, EntryMax] keeping entry > 0, exits over [ExitMin, ExitMax]
// keeping exit >= 0, cross product filtered to exit strictly below
// entry. An entry==exit pair is never emitted.
func Generate(cfg Config) []Combination {
	entries := steps(cfg.EntryMin, cfg.EntryMax, cfg.EntryStep, func(v float64) bool { return v > 0 })
	exits := steps(cfg.ExitMin, cfg.ExitMax, cfg.ExitStep, func(v float64) bool { return v >= 0 })

	combos := make([]Combination, 0, len(entries)*len(exits))
	for _, entry := range entries {
		for _, exit := range exits {
			if entry-exit > floatTolerance {
				combos = append(combos, Combination{Entry: entry, Exit: exit})
			}
		}
	}
	return combos
}

// steps enumerates min + i*step up to max using an integer index, so
// repeated addition cannot drift past the bound.
func steps(min, max, step float64, keep func(float64) bool) []float64 {
	if step <= 0 || max < min {
		return nil
	}

	n := int(math.Floor((max-min)/step + floatTolerance))
	out := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		v := min + float64(i)*step
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
