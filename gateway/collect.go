package gateway

import (
	"context"
	"log/slog"
	"math"

	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/internal/wallclock"
)

// sampleRequest is the poll command understood by all firmware builds.
var sampleRequest = []byte("READ\n")

// Collect runs the one-shot comprehensive reading: it gathers samples for the
// collection window and averages them into one representative sample. With a
// live link it periodically requests samples from the device and takes
// exclusive control of inbound data for the window; with no device it
// synthesizes samples from the weighted scenario table. Zero collected
// samples yield an EmptyCollectionError. Only one collection may run at a
// time.
func (g *Gateway) Collect(ctx context.Context) (RawSample, int, error) {
	capture := make(chan RawSample, 64)

	g.mu.Lock()
	if g.collecting {
		g.mu.Unlock()
		return RawSample{}, 0, &StateError{State: StateCollecting}
	}
	g.collecting = true
	live := g.link != nil
	if live {
		g.capture = capture
	}
	g.mu.Unlock()

	if g.State() == StateConnected {
		g.setState(ctx, StateCollecting)
	}
	defer func() {
		g.mu.Lock()
		g.collecting = false
		g.capture = nil
		g.mu.Unlock()
		if g.State() == StateCollecting {
			g.setState(ctx, StateConnected)
		}
	}()

	timer := wallclock.Instance.NewTimer(g.opts.CollectWindow)
	defer timer.Stop()
	ticker := wallclock.Instance.NewTicker(g.opts.SampleInterval)
	defer ticker.Stop()

	var collected []RawSample
collect:
	for {
		select {
		case <-timer.C():
			break collect
		case <-ctx.Done():
			return RawSample{}, 0, ctx.Err()
		case <-ticker.C():
			if live {
				g.requestSample(ctx)
			} else if len(g.opts.Scenarios) > 0 {
				s := synthesize(g.rand, g.opts.Scenarios)
				s.CapturedAt = wallclock.Instance.Now()
				collected = append(collected, s)
			}
		case s := <-capture:
			collected = append(collected, s)
		}
	}

	if len(collected) == 0 {
		return RawSample{}, 0, &EmptyCollectionError{Window: g.opts.CollectWindow}
	}

	g.log.Info(ctx, "comprehensive collection complete",
		slog.Int("samples", len(collected)),
		slog.Bool("synthetic", !live),
	)
	return average(collected), len(collected), nil
}

func (g *Gateway) requestSample(ctx context.Context) {
	g.mu.Lock()
	link := g.link
	g.mu.Unlock()
	if link == nil {
		return
	}
	if _, err := link.Write(sampleRequest); err != nil {
		g.log.Err(ctx, &LinkError{message: "sample request failed", wrapped: err})
	}
}

// average reduces collected samples to one representative sample, each
// channel rounded and clamped back into valid range.
func average(samples []RawSample) RawSample {
	var ph, r, gr, b, c float64
	for _, s := range samples {
		ph += s.Acidity
		r += float64(s.Color.R)
		gr += float64(s.Color.G)
		b += float64(s.Color.B)
		c += float64(s.Color.Clear)
	}

	n := float64(len(samples))
	clampCh := func(v float64) int {
		return int(math.Min(math.Max(math.Round(v/n), 0), 65535))
	}

	return RawSample{
		Acidity: math.Min(math.Max(ph/n, 0), 14),
		Color: colorspace.Tristimulus{
			R:     clampCh(r),
			G:     clampCh(gr),
			B:     clampCh(b),
			Clear: clampCh(c),
		},
		CapturedAt: wallclock.Instance.Now(),
	}
}
