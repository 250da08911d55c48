package gateway

import (
	"math/rand"

	"github.com/chromaprobe/chromaprobe/colorspace"
)

// Scenario is one synthetic reading profile used when a comprehensive reading
// is requested with no device attached. Weights skew selection toward healthy
// outcomes.
type Scenario struct {
	Name    string
	Color   colorspace.Tristimulus
	Acidity float64
	Weight  int
}

// DefaultScenarios returns the built-in synthetic reading table.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{"pale straw", colorspace.Tristimulus{R: 255, G: 255, B: 230}, 7.0, 40},
		{"light straw", colorspace.Tristimulus{R: 252, G: 250, B: 205}, 6.9, 22},
		{"pale yellow", colorspace.Tristimulus{R: 248, G: 240, B: 170}, 6.7, 14},
		{"yellow", colorspace.Tristimulus{R: 242, G: 228, B: 130}, 6.5, 10},
		{"amber", colorspace.Tristimulus{R: 220, G: 188, B: 80}, 6.2, 6},
		{"dark amber", colorspace.Tristimulus{R: 200, G: 160, B: 65}, 5.9, 4},
		{"brown", colorspace.Tristimulus{R: 140, G: 88, B: 42}, 5.6, 3},
		{"dark brown-red", colorspace.Tristimulus{R: 112, G: 58, B: 34}, 5.2, 1},
	}
}

// Jitter bounds applied to a selected scenario.
const (
	channelJitter = 6
	acidityJitter = 0.25
)

// synthesize draws a weighted scenario and perturbs it with bounded jitter,
// clamped back into plausible range.
func synthesize(r *rand.Rand, scenarios []Scenario) RawSample {
	total := 0
	for _, s := range scenarios {
		total += s.Weight
	}

	pick := scenarios[len(scenarios)-1]
	n := r.Intn(total)
	for _, s := range scenarios {
		if n < s.Weight {
			pick = s
			break
		}
		n -= s.Weight
	}

	jitterCh := func(v int) int {
		v += r.Intn(2*channelJitter+1) - channelJitter
		if v < 0 {
			return 0
		}
		if v > 65535 {
			return 65535
		}
		return v
	}

	ph := pick.Acidity + (r.Float64()*2-1)*acidityJitter
	if ph < 0 {
		ph = 0
	}
	if ph > 14 {
		ph = 14
	}

	return RawSample{
		Acidity: ph,
		Color: colorspace.Tristimulus{
			R: jitterCh(pick.Color.R),
			G: jitterCh(pick.Color.G),
			B: jitterCh(pick.Color.B),
		},
	}
}
