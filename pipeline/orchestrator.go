// Package pipeline runs the per-sample control loop: it pulls raw samples
// from the acquisition gateway, feeds the rolling acidity window and the
// classifier, evaluates alert policy, and hands processed readings to the
// persistence and notification collaborators.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chromaprobe/chromaprobe/classify"
	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/gateway"
	"github.com/chromaprobe/chromaprobe/internal/log"
	"github.com/chromaprobe/chromaprobe/window"
)

type (
	// ProcessedReading is the pipeline's output, assembled once per sample
	// and handed to the external collaborators; it is not retained
	// internally.
	ProcessedReading struct {
		ID         uuid.UUID       `json:"id"`
		PHAverage  float64         `json:"ph_average"`
		Score      int             `json:"score"`
		Confidence float64         `json:"confidence"`
		Lab        colorspace.Lab  `json:"lab"`
		Color      colorspace.RGB  `json:"color"`
		CapturedAt time.Time       `json:"captured_at"`
	}

	// ComprehensiveResult is the payload of a one-shot comprehensive
	// reading.
	ComprehensiveResult struct {
		Reading        ProcessedReading `json:"reading"`
		SampleCount    int              `json:"sample_count"`
		Alerts         []Alert          `json:"alerts,omitempty"`
		Recommendation string           `json:"recommendation"`
	}

	// Diagnostics is a read-only snapshot of pipeline health.
	Diagnostics struct {
		Window          window.Stats `json:"window"`
		ClassifierReady bool         `json:"classifier_ready"`
		GatewayState    string       `json:"gateway_state"`
	}

	// SampleSource is the acquisition boundary; satisfied by
	// *gateway.Gateway.
	SampleSource interface {
		Samples() <-chan gateway.RawSample
		Collect(ctx context.Context) (gateway.RawSample, int, error)
		State() gateway.State
	}

	// Store is the persistence collaborator. The pipeline hands readings
	// off and does not manage how or where they are stored.
	Store interface {
		SaveReading(
			ctx context.Context,
			reading ProcessedReading,
			alerts []Alert,
			recommendation string,
		) error
		LabeledReadings(
			ctx context.Context,
			limit int,
		) ([]classify.LabeledSample, error)
	}

	// Notifier is the notification collaborator, invoked for readings that
	// raised at least one alert.
	Notifier interface {
		Notify(ctx context.Context, reading ProcessedReading, alerts []Alert) error
	}

	// Orchestrator owns one pipeline instance: the window and classifier
	// are owned here and all mutation goes through this owner.
	Orchestrator struct {
		source     SampleSource
		window     *window.Window
		classifier *classify.Classifier
		store      Store
		notifier   Notifier
		log        log.Logger
	}

	// OrchestratorOption configures optional collaborators.
	OrchestratorOption func(*Orchestrator)
)

// WithStore attaches the persistence collaborator.
func WithStore(s Store) OrchestratorOption {
	return func(o *Orchestrator) { o.store = s }
}

// WithNotifier attaches the notification collaborator.
func WithNotifier(n Notifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log.Wrap(l) }
}

// New constructs an orchestrator over its owned window and classifier.
func New(
	source SampleSource,
	win *window.Window,
	classifier *classify.Classifier,
	opt ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		source:     source,
		window:     win,
		classifier: classifier,
	}
	for _, op := range opt {
		op(o)
	}
	return o
}

// Run consumes the continuous sample stream until the context is done.
// Per-sample errors are contained and logged; they never halt the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-o.source.Samples():
			if !ok {
				return nil
			}
			o.process(ctx, sample)
		}
	}
}

// process drives one sample through the
// received → aggregated → classified → alert-evaluated → dispatched cycle.
func (o *Orchestrator) process(ctx context.Context, sample gateway.RawSample) {
	o.window.Push(sample.Acidity, sample.CapturedAt)

	color := colorspace.Normalize(sample.Color)
	result, err := o.classifier.Classify(color)
	if err != nil {
		o.log.Err(ctx, err)
		return
	}

	reading := ProcessedReading{
		ID:         uuid.New(),
		PHAverage:  o.window.Average(),
		Score:      result.Score,
		Confidence: result.Confidence,
		Lab:        result.Lab,
		Color:      color,
		CapturedAt: sample.CapturedAt,
	}

	alerts := EvaluateAlerts(reading)
	o.dispatch(ctx, reading, alerts)
}

// dispatch hands the reading to the collaborators. Collaborator failures are
// logged and do not affect the loop.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	reading ProcessedReading,
	alerts []Alert,
) {
	if o.store != nil {
		rec := classify.Recommendation(reading.Score)
		if err := o.store.SaveReading(ctx, reading, alerts, rec); err != nil {
			o.log.Err(ctx, err, slog.String("collaborator", "store"))
		}
	}

	if o.notifier != nil && len(alerts) > 0 {
		if err := o.notifier.Notify(ctx, reading, alerts); err != nil {
			o.log.Err(ctx, err, slog.String("collaborator", "notifier"))
		}
	}
}

// Comprehensive triggers a one-shot comprehensive reading: the gateway
// collects and averages samples over its collection window, and the averaged
// sample is classified and paired with a recommendation. Failures (such as an
// empty collection) are returned to the caller rather than retried.
func (o *Orchestrator) Comprehensive(
	ctx context.Context,
) (ComprehensiveResult, error) {
	sample, count, err := o.source.Collect(ctx)
	if err != nil {
		return ComprehensiveResult{}, err
	}

	color := colorspace.Normalize(sample.Color)
	result, err := o.classifier.Classify(color)
	if err != nil {
		return ComprehensiveResult{}, err
	}

	reading := ProcessedReading{
		ID:         uuid.New(),
		PHAverage:  sample.Acidity,
		Score:      result.Score,
		Confidence: result.Confidence,
		Lab:        result.Lab,
		Color:      color,
		CapturedAt: sample.CapturedAt,
	}

	res := ComprehensiveResult{
		Reading:        reading,
		SampleCount:    count,
		Alerts:         EvaluateAlerts(reading),
		Recommendation: classify.Recommendation(result.Score),
	}

	if o.store != nil {
		if err := o.store.SaveReading(
			ctx, reading, res.Alerts, res.Recommendation,
		); err != nil {
			o.log.Err(ctx, err, slog.String("collaborator", "store"))
		}
	}

	return res, nil
}

// Diagnostics reports the aggregator snapshot and initialization status.
func (o *Orchestrator) Diagnostics() Diagnostics {
	return Diagnostics{
		Window:          o.window.Stats(),
		ClassifierReady: o.classifier.Ready(),
		GatewayState:    o.source.State().String(),
	}
}

// Retrain feeds recent labeled readings from the store into the classifier's
// adaptive update and returns the number of clusters recentered.
func (o *Orchestrator) Retrain(ctx context.Context, limit int) (int, error) {
	if o.store == nil {
		return 0, nil
	}

	samples, err := o.store.LabeledReadings(ctx, limit)
	if err != nil {
		return 0, err
	}

	updated := o.classifier.Adapt(samples)
	o.log.Info(ctx, "classifier retrained",
		slog.Int("samples", len(samples)),
		slog.Int("clusters_updated", updated),
	)
	return updated, nil
}
