// Package classify scores normalized sensor colors against an ordered set of
// reference clusters in CIE L*a*b* space.
package classify

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/internal/wallclock"
)

// DefaultMaxExpectedDistance is the perceptual distance at which confidence
// saturates toward zero. The value is empirical; override it with
// WithMaxExpectedDistance if a recalibrated sensor warrants it.
const DefaultMaxExpectedDistance = 100.0

type (
	// Cluster is a labeled centroid representing one point on the ordinal
	// health scale. Scores are unique within a classifier and ascend from 1
	// (healthiest) to 10 (worst).
	Cluster struct {
		Score       int
		Centroid    colorspace.Lab
		SampleCount int
		Description string
		LastUpdated time.Time
	}

	// Result is the outcome of a single classification.
	Result struct {
		Score      int
		Confidence float64
		Lab        colorspace.Lab
	}

	// LabeledSample pairs an observed Lab color with an operator-assigned
	// score, used to recenter the reference clusters.
	LabeledSample struct {
		Lab   colorspace.Lab
		Score int
	}

	// Classifier finds the nearest reference cluster for a color. Classify is
	// safe for concurrent use with Adapt: adaptation swaps in a complete new
	// cluster snapshot rather than mutating centroids in place, so readers
	// never observe a half-updated cluster.
	Classifier struct {
		clusters    atomic.Pointer[[]Cluster]
		adaptMu     sync.Mutex
		maxDistance float64
	}

	// Option configures a Classifier.
	Option func(*Classifier)
)

// NotInitializedError is returned by Classify when no reference clusters
// have been loaded.
type NotInitializedError struct{}

func (*NotInitializedError) Error() string {
	return "no reference clusters loaded"
}

// SeedError indicates an invalid seed cluster set.
type SeedError struct {
	message string
}

func (e *SeedError) Error() string {
	return e.message
}

// WithMaxExpectedDistance overrides the distance at which confidence
// saturates.
func WithMaxExpectedDistance(d float64) Option {
	return func(c *Classifier) {
		c.maxDistance = d
	}
}

// New constructs a classifier from a seed cluster set. The set is copied and
// kept sorted ascending by score; duplicate scores are rejected.
func New(seed []Cluster, opt ...Option) (*Classifier, error) {
	c := &Classifier{maxDistance: DefaultMaxExpectedDistance}
	for _, o := range opt {
		o(c)
	}

	if len(seed) > 0 {
		clusters := make([]Cluster, len(seed))
		copy(clusters, seed)
		sort.Slice(clusters, func(i, j int) bool {
			return clusters[i].Score < clusters[j].Score
		})
		for i := 1; i < len(clusters); i++ {
			if clusters[i].Score == clusters[i-1].Score {
				return nil, &SeedError{message: fmt.Sprintf(
					"duplicate cluster score %d", clusters[i].Score,
				)}
			}
		}
		c.clusters.Store(&clusters)
	}

	return c, nil
}

// Ready reports whether reference clusters have been loaded.
func (c *Classifier) Ready() bool {
	return c.clusters.Load() != nil
}

// Clusters returns a copy of the current cluster snapshot, sorted ascending
// by score.
func (c *Classifier) Clusters() []Cluster {
	p := c.clusters.Load()
	if p == nil {
		return nil
	}
	out := make([]Cluster, len(*p))
	copy(out, *p)
	return out
}

// Classify converts the color to Lab and returns the minimum-distance
// cluster's score with a confidence estimate. Ties resolve to the lower
// score, since clusters are scanned in ascending-score order.
func (c *Classifier) Classify(color colorspace.RGB) (Result, error) {
	p := c.clusters.Load()
	if p == nil {
		return Result{}, &NotInitializedError{}
	}

	lab := colorspace.ToLab(color)

	best := (*p)[0]
	bestDist := colorspace.Distance(lab, best.Centroid)
	for _, cluster := range (*p)[1:] {
		if d := colorspace.Distance(lab, cluster.Centroid); d < bestDist {
			best, bestDist = cluster, d
		}
	}

	return Result{
		Score:      best.Score,
		Confidence: c.confidence(bestDist),
		Lab:        lab,
	}, nil
}

// Adapt recenters clusters from newly labeled samples using a weighted
// running centroid, then atomically swaps in the updated snapshot. Samples
// whose score has no matching cluster are ignored. Calling Adapt with no
// samples is a no-op.
func (c *Classifier) Adapt(samples []LabeledSample) int {
	c.adaptMu.Lock()
	defer c.adaptMu.Unlock()

	p := c.clusters.Load()
	if p == nil || len(samples) == 0 {
		return 0
	}

	type group struct {
		sum   colorspace.Lab
		count int
	}
	groups := make(map[int]*group)
	for _, s := range samples {
		g := groups[s.Score]
		if g == nil {
			g = &group{}
			groups[s.Score] = g
		}
		g.sum.L += s.Lab.L
		g.sum.A += s.Lab.A
		g.sum.B += s.Lab.B
		g.count++
	}

	clusters := make([]Cluster, len(*p))
	copy(clusters, *p)

	updated := 0
	now := wallclock.Instance.Now()
	for i := range clusters {
		g, ok := groups[clusters[i].Score]
		if !ok {
			continue
		}

		mean := colorspace.Lab{
			L: g.sum.L / float64(g.count),
			A: g.sum.A / float64(g.count),
			B: g.sum.B / float64(g.count),
		}

		oldCount := clusters[i].SampleCount
		newCount := oldCount + g.count
		oldW := float64(oldCount) / float64(newCount)
		newW := float64(g.count) / float64(newCount)

		clusters[i].Centroid = colorspace.Lab{
			L: clusters[i].Centroid.L*oldW + mean.L*newW,
			A: clusters[i].Centroid.A*oldW + mean.A*newW,
			B: clusters[i].Centroid.B*oldW + mean.B*newW,
		}
		clusters[i].SampleCount = newCount
		clusters[i].LastUpdated = now
		updated++
	}

	if updated > 0 {
		c.clusters.Store(&clusters)
	}
	return updated
}

// confidence maps a perceptual distance to [0,1]. Distance 0 maps to roughly
// 0.99 and the curve saturates toward 0 as the distance approaches
// maxDistance.
func (c *Classifier) confidence(distance float64) float64 {
	norm := math.Min(distance/c.maxDistance, 1)
	conf := 1 / (1 + math.Exp(10*(norm-0.5)))
	return math.Min(math.Max(conf, 0), 1)
}
