package classify

import "github.com/chromaprobe/chromaprobe/colorspace"

// Seed reference colors for the ten-point health scale, expressed as the
// normalized RGB readings they were calibrated from. Score 1 is the
// healthiest (bright pale straw) and severity ascends to score 10 (dark
// brown-red). Centroids are converted through the same Lab recipe used for
// classification so that a reading matching a seed color classifies at
// distance zero.
var seedTable = []struct {
	score       int
	rgb         colorspace.RGB
	description string
}{
	{1, colorspace.RGB{R: 255, G: 255, B: 230}, "pale straw"},
	{2, colorspace.RGB{R: 252, G: 250, B: 205}, "light straw"},
	{3, colorspace.RGB{R: 248, G: 240, B: 170}, "pale yellow"},
	{4, colorspace.RGB{R: 242, G: 228, B: 130}, "yellow"},
	{5, colorspace.RGB{R: 233, G: 210, B: 100}, "dark yellow"},
	{6, colorspace.RGB{R: 220, G: 188, B: 80}, "amber"},
	{7, colorspace.RGB{R: 200, G: 160, B: 65}, "dark amber"},
	{8, colorspace.RGB{R: 172, G: 122, B: 50}, "light brown"},
	{9, colorspace.RGB{R: 140, G: 88, B: 42}, "brown"},
	{10, colorspace.RGB{R: 112, G: 58, B: 34}, "dark brown-red"},
}

// SeedClusters returns the startup reference cluster set.
func SeedClusters() []Cluster {
	clusters := make([]Cluster, len(seedTable))
	for i, s := range seedTable {
		clusters[i] = Cluster{
			Score:       s.score,
			Centroid:    colorspace.ToLab(s.rgb),
			Description: s.description,
		}
	}
	return clusters
}
