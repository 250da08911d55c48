// Package colorspace converts raw tristimulus sensor readings into sRGB and
// the CIE L*a*b* space used for distance-based classification.
package colorspace

import "math"

type (
	// Tristimulus is a raw multi-channel light-intensity measurement from the
	// color sensor, before any normalization. Channels may be 8-bit or 16-bit
	// depending on the device integration settings; Clear is zero when the
	// sensor does not report a clear channel.
	Tristimulus struct {
		R     int
		G     int
		B     int
		Clear int
	}

	// RGB is a color normalized into the 8-bit [0,255] range per channel.
	RGB struct {
		R uint8
		G uint8
		B uint8
	}

	// Lab is a color in CIE L*a*b* space. L is in [0,100]; A and B are
	// unbounded in principle but stay within roughly [-128,128] for sRGB
	// inputs.
	Lab struct {
		L float64
		A float64
		B float64
	}
)

// D65 reference white in CIE XYZ, Y normalized to 1. Classification depends
// on these exact constants; the seed clusters were generated in the same
// space.
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

// Normalize converts a raw tristimulus reading into the 8-bit RGB range.
//
// When the reading carries a nonzero clear channel, each color channel is
// divided by the clear channel and rescaled, which compensates for ambient
// brightness. Otherwise, if any channel exceeds 255 the reading is treated as
// 16-bit and linearly rescaled. Results are always clamped into [0,255].
func Normalize(t Tristimulus) RGB {
	r, g, b := float64(t.R), float64(t.G), float64(t.B)

	switch {
	case t.Clear > 0:
		c := float64(t.Clear)
		r = r / c * 255
		g = g / c * 255
		b = b / c * 255
	case t.R > 255 || t.G > 255 || t.B > 255:
		r = r / 65535 * 255
		g = g / 65535 * 255
		b = b / 65535 * 255
	}

	return RGB{clamp8(r), clamp8(g), clamp8(b)}
}

// ToLab converts a normalized color to CIE L*a*b* under the D65 illuminant.
// It is total: adversarial inputs that would produce a non-finite component
// yield the neutral gray Lab{L: 50} instead.
func ToLab(c RGB) Lab {
	r := gammaExpand(float64(c.R) / 255)
	g := gammaExpand(float64(c.G) / 255)
	b := gammaExpand(float64(c.B) / 255)

	// Linear sRGB to CIE XYZ, then normalize against the reference white.
	x := (0.4124*r + 0.3576*g + 0.1805*b) / whiteX
	y := (0.2126*r + 0.7152*g + 0.0722*b) / whiteY
	z := (0.0193*r + 0.1192*g + 0.9505*b) / whiteZ

	fx, fy, fz := labComp(x), labComp(y), labComp(z)

	lab := Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}

	if !isFinite(lab.L) || !isFinite(lab.A) || !isFinite(lab.B) {
		return Lab{L: 50}
	}

	lab.L = math.Min(math.Max(lab.L, 0), 100)
	return lab
}

// Distance returns the Euclidean distance between two Lab colors, which
// approximates perceptual difference in this space.
func Distance(a, b Lab) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// gammaExpand decodes the sRGB transfer function: linear below the 0.04045
// threshold, power 2.4 above.
func gammaExpand(u float64) float64 {
	if u <= 0.04045 {
		return u / 12.92
	}
	return math.Pow((u+0.055)/1.055, 2.4)
}

// labComp is the L*a*b* nonlinearity: cube root above the 0.008856 threshold,
// linear approximation below.
func labComp(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func clamp8(v float64) uint8 {
	r := math.Round(v)
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	default:
		return uint8(r)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
