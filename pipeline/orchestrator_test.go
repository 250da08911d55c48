package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chromaprobe/chromaprobe/classify"
	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/gateway"
	"github.com/chromaprobe/chromaprobe/pipeline"
	"github.com/chromaprobe/chromaprobe/window"
)

var captured = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeSource feeds scripted samples and a canned one-shot result.
type fakeSource struct {
	ch         chan gateway.RawSample
	collected  gateway.RawSample
	collectN   int
	collectErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan gateway.RawSample, 16)}
}

func (f *fakeSource) Samples() <-chan gateway.RawSample { return f.ch }

func (f *fakeSource) Collect(context.Context) (gateway.RawSample, int, error) {
	return f.collected, f.collectN, f.collectErr
}

func (f *fakeSource) State() gateway.State { return gateway.StateConnected }

// recordingStore records saves and serves labeled samples for retraining.
type recordingStore struct {
	mu       sync.Mutex
	readings []pipeline.ProcessedReading
	alerts   [][]pipeline.Alert
	recs     []string
	labeled  []classify.LabeledSample
}

func (s *recordingStore) SaveReading(
	_ context.Context,
	r pipeline.ProcessedReading,
	a []pipeline.Alert,
	rec string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	s.alerts = append(s.alerts, a)
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingStore) LabeledReadings(
	context.Context, int,
) ([]classify.LabeledSample, error) {
	return s.labeled, nil
}

func (s *recordingStore) saved() []pipeline.ProcessedReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.ProcessedReading(nil), s.readings...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) Notify(
	context.Context, pipeline.ProcessedReading, []pipeline.Alert,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func sample(ph float64, rgb colorspace.Tristimulus, at time.Time) gateway.RawSample {
	return gateway.RawSample{Acidity: ph, Color: rgb, CapturedAt: at}
}

func run(t *testing.T, o *pipeline.Orchestrator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestProcessUsesWindowAverageNotLatest(t *testing.T) {
	src := newFakeSource()
	store := &recordingStore{}
	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)

	o := pipeline.New(src, window.New(time.Minute, 100), cls,
		pipeline.WithStore(store))
	run(t, o)

	healthy := colorspace.Tristimulus{R: 255, G: 255, B: 230}
	src.ch <- sample(7.0, healthy, captured)
	src.ch <- sample(8.0, healthy, captured.Add(time.Second))

	require.Eventually(t, func() bool {
		return len(store.saved()) == 2
	}, time.Second, 5*time.Millisecond)

	saved := store.saved()
	require.Equal(t, 7.0, saved[0].PHAverage)
	// Second reading carries the running average, not the latest value.
	require.Equal(t, 7.5, saved[1].PHAverage)
	require.Equal(t, 1, saved[1].Score)
	require.NotEqual(t, saved[0].ID, saved[1].ID)
}

func TestProcessContainsClassifierErrors(t *testing.T) {
	src := newFakeSource()
	store := &recordingStore{}
	empty, err := classify.New(nil)
	require.NoError(t, err)

	win := window.New(time.Minute, 100)
	o := pipeline.New(src, win, empty, pipeline.WithStore(store))
	run(t, o)

	src.ch <- sample(7.0, colorspace.Tristimulus{R: 255, G: 255, B: 230}, captured)
	src.ch <- sample(7.2, colorspace.Tristimulus{R: 252, G: 250, B: 205},
		captured.Add(time.Second))

	// The loop keeps aggregating even though every classification fails.
	require.Eventually(t, func() bool {
		return win.Stats().Size == 2
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, store.saved())
}

func TestNotifierCalledOnlyOnAlerts(t *testing.T) {
	src := newFakeSource()
	notifier := &recordingNotifier{}
	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)

	win := window.New(time.Minute, 100)
	o := pipeline.New(src, win, cls, pipeline.WithNotifier(notifier))
	run(t, o)

	healthy := colorspace.Tristimulus{R: 255, G: 255, B: 230}
	src.ch <- sample(7.0, healthy, captured)

	require.Eventually(t, func() bool {
		return win.Stats().Size == 1
	}, time.Second, 5*time.Millisecond)
	require.Zero(t, notifier.count())

	// Extreme acidity raises an alert and reaches the notifier.
	src.ch <- sample(2.0, healthy, captured.Add(90*time.Second))

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestComprehensiveReading(t *testing.T) {
	src := newFakeSource()
	src.collected = sample(6.9, colorspace.Tristimulus{R: 252, G: 250, B: 205},
		captured)
	src.collectN = 9

	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)

	o := pipeline.New(src, window.New(time.Minute, 100), cls)

	res, err := o.Comprehensive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, res.SampleCount)
	require.Equal(t, 2, res.Reading.Score)
	require.Equal(t, 6.9, res.Reading.PHAverage)
	require.Equal(t, classify.Recommendation(2), res.Recommendation)
	require.Empty(t, res.Alerts)
}

func TestComprehensiveSurfacesCollectionFailure(t *testing.T) {
	src := newFakeSource()
	src.collectErr = &gateway.EmptyCollectionError{Window: 5 * time.Second}

	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)

	o := pipeline.New(src, window.New(time.Minute, 100), cls)

	_, err = o.Comprehensive(context.Background())
	var ece *gateway.EmptyCollectionError
	require.ErrorAs(t, err, &ece)
}

func TestDiagnostics(t *testing.T) {
	src := newFakeSource()
	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)

	win := window.New(time.Minute, 100)
	win.Push(7.1, captured)

	o := pipeline.New(src, win, cls)
	d := o.Diagnostics()
	require.True(t, d.ClassifierReady)
	require.Equal(t, "connected", d.GatewayState)
	require.Equal(t, 1, d.Window.Size)
	require.Equal(t, 7.1, d.Window.Average)
}

func TestRetrainFeedsLabeledReadings(t *testing.T) {
	src := newFakeSource()
	store := &recordingStore{
		labeled: []classify.LabeledSample{
			{Score: 4, Lab: colorspace.ToLab(colorspace.RGB{R: 240, G: 226, B: 128})},
			{Score: 4, Lab: colorspace.ToLab(colorspace.RGB{R: 244, G: 230, B: 132})},
		},
	}

	cls, err := classify.New(classify.SeedClusters())
	require.NoError(t, err)
	before := cls.Clusters()

	o := pipeline.New(src, window.New(time.Minute, 100), cls,
		pipeline.WithStore(store))

	updated, err := o.Retrain(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	after := cls.Clusters()
	require.NotEqual(t, before, after)
}
