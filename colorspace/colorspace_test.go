package colorspace_test

import (
	"math"
	"testing"

	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/stretchr/testify/require"
)

func TestToLabReferenceValues(t *testing.T) {
	cases := []struct {
		name    string
		in      colorspace.RGB
		l, a, b float64
	}{
		{"white", colorspace.RGB{R: 255, G: 255, B: 255}, 100, 0, 0},
		{"black", colorspace.RGB{}, 0, 0, 0},
		{"red", colorspace.RGB{R: 255}, 53.23, 80.11, 67.22},
		{"green", colorspace.RGB{G: 255}, 87.74, -86.18, 83.18},
		{"blue", colorspace.RGB{B: 255}, 32.30, 79.20, -107.86},
		{"mid gray", colorspace.RGB{R: 119, G: 119, B: 119}, 50.03, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lab := colorspace.ToLab(tc.in)
			require.InDelta(t, tc.l, lab.L, 0.05)
			require.InDelta(t, tc.a, lab.A, 0.05)
			require.InDelta(t, tc.b, lab.B, 0.05)
		})
	}
}

func TestToLabAlwaysFinite(t *testing.T) {
	// Sweep the channel range; every result must be finite with L in
	// [0,100]. The stride keeps the sweep fast while still hitting both
	// gamma branches and both L*a*b* branches.
	for r := 0; r <= 255; r += 15 {
		for g := 0; g <= 255; g += 15 {
			for b := 0; b <= 255; b += 15 {
				lab := colorspace.ToLab(colorspace.RGB{
					R: uint8(r), G: uint8(g), B: uint8(b),
				})
				require.False(t, lab.L < 0 || lab.L > 100,
					"L out of range for (%d,%d,%d): %v", r, g, b, lab.L)
				require.False(t, math.IsNaN(lab.A) || math.IsInf(lab.A, 0))
				require.False(t, math.IsNaN(lab.B) || math.IsInf(lab.B, 0))
			}
		}
	}
}

func TestNormalizePassThrough(t *testing.T) {
	rgb := colorspace.Normalize(colorspace.Tristimulus{R: 12, G: 200, B: 255})
	require.Equal(t, colorspace.RGB{R: 12, G: 200, B: 255}, rgb)
}

func TestNormalizeSixteenBit(t *testing.T) {
	rgb := colorspace.Normalize(colorspace.Tristimulus{R: 45000, G: 65535, B: 0})
	require.Equal(t, uint8(175), rgb.R)
	require.Equal(t, uint8(255), rgb.G)
	require.Equal(t, uint8(0), rgb.B)
}

func TestNormalizeClearChannelDiffersFromLinear(t *testing.T) {
	raw := colorspace.Tristimulus{R: 45000, G: 30000, B: 20000}

	linear := colorspace.Normalize(raw)

	raw.Clear = 50000
	cleared := colorspace.Normalize(raw)

	require.NotEqual(t, linear, cleared)
	require.Equal(t, uint8(230), cleared.R)
	require.Equal(t, uint8(153), cleared.G)
	require.Equal(t, uint8(102), cleared.B)
}

func TestNormalizeClampsOverflow(t *testing.T) {
	// Channels above the clear channel would rescale past 255.
	rgb := colorspace.Normalize(colorspace.Tristimulus{
		R: 60000, G: 10000, B: 5000, Clear: 20000,
	})
	require.Equal(t, uint8(255), rgb.R)
	require.Equal(t, uint8(128), rgb.G)
	require.Equal(t, uint8(64), rgb.B)
}

func TestDistanceIdentity(t *testing.T) {
	lab := colorspace.ToLab(colorspace.RGB{R: 200, G: 180, B: 90})
	require.Zero(t, colorspace.Distance(lab, lab))
	require.Greater(t, colorspace.Distance(lab, colorspace.Lab{L: 50}), 0.0)
}
