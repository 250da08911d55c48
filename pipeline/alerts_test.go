package pipeline_test

import (
	"testing"

	"github.com/chromaprobe/chromaprobe/pipeline"
	"github.com/stretchr/testify/require"
)

func kinds(alerts []pipeline.Alert) []pipeline.AlertKind {
	out := make([]pipeline.AlertKind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}

func TestEvaluateAlertsHealthyReading(t *testing.T) {
	alerts := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 7.0, Score: 1, Confidence: 0.95,
	})
	require.Empty(t, alerts)
}

func TestEvaluateAlertsExtremeAcidity(t *testing.T) {
	for _, ph := range []float64{4.49, 8.51, 0, 14} {
		alerts := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
			PHAverage: ph, Score: 1, Confidence: 0.95,
		})
		require.Equal(t, []pipeline.AlertKind{pipeline.AlertExtremeAcidity},
			kinds(alerts), "ph=%v", ph)
	}

	// Boundary values do not fire.
	for _, ph := range []float64{4.5, 8.5} {
		require.Empty(t, pipeline.EvaluateAlerts(pipeline.ProcessedReading{
			PHAverage: ph, Score: 1, Confidence: 0.95,
		}))
	}
}

func TestEvaluateAlertsScoreSeverity(t *testing.T) {
	concerning := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 7, Score: 6, Confidence: 0.95,
	})
	require.Equal(t, []pipeline.AlertKind{pipeline.AlertConcerning}, kinds(concerning))

	critical := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 7, Score: 8, Confidence: 0.95,
	})
	require.Equal(t, []pipeline.AlertKind{pipeline.AlertCritical}, kinds(critical))

	// Critical supersedes concerning; both never fire together.
	ten := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 7, Score: 10, Confidence: 0.95,
	})
	require.Equal(t, []pipeline.AlertKind{pipeline.AlertCritical}, kinds(ten))
}

func TestEvaluateAlertsLowConfidence(t *testing.T) {
	alerts := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 7, Score: 1, Confidence: 0.49,
	})
	require.Equal(t, []pipeline.AlertKind{pipeline.AlertLowConfidence}, kinds(alerts))
}

func TestEvaluateAlertsMultipleSimultaneous(t *testing.T) {
	alerts := pipeline.EvaluateAlerts(pipeline.ProcessedReading{
		PHAverage: 3.2, Score: 9, Confidence: 0.2,
	})
	require.Equal(t, []pipeline.AlertKind{
		pipeline.AlertExtremeAcidity,
		pipeline.AlertCritical,
		pipeline.AlertLowConfidence,
	}, kinds(alerts))
}
