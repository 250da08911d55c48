// Package gateway owns the serial link to the sensor device. It parses the
// device's heterogeneous line formats into raw samples, recovers from
// disconnections with a bounded retry policy, and runs the one-shot
// comprehensive-reading protocol.
package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromaprobe/chromaprobe/internal/log"
	"github.com/chromaprobe/chromaprobe/internal/wallclock"
)

// State is the gateway's position in its connection lifecycle.
type State int32

const (
	// StateIdle means the gateway has not been started.
	StateIdle State = iota

	// StateConnecting means a connection attempt is in progress.
	StateConnecting

	// StateConnected means the continuous read loop is live.
	StateConnected

	// StateCollecting means a one-shot collection has exclusive control of
	// inbound data.
	StateCollecting

	// StateDisconnected means reconnection attempts are exhausted; the
	// gateway stays disconnected until explicitly restarted.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCollecting:
		return "collecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Dialer opens the byte-stream link to the device. The default dialer opens
// the configured (or auto-detected) serial endpoint; tests inject their own.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Options configures a Gateway. The zero value of each field falls back to
// the documented default.
type Options struct {
	// Endpoint is the serial endpoint identifier (e.g. /dev/ttyUSB0).
	Endpoint string

	// BaudRate for the serial link. Defaults to 9600.
	BaudRate int

	// AutoDetect enumerates serial endpoints and prefers one matching a
	// known USB vendor signature, falling back to Endpoint.
	AutoDetect bool

	// MaxReconnects bounds connection attempts before the gateway gives up
	// and surfaces a persistent disconnected state. Defaults to 5.
	MaxReconnects int

	// ReconnectDelay is the fixed delay between connection attempts.
	// Defaults to 5s.
	ReconnectDelay time.Duration

	// CollectWindow is the wall-clock duration of a one-shot comprehensive
	// reading. Defaults to 5s.
	CollectWindow time.Duration

	// SampleInterval is the request (or synthesis) period during a one-shot
	// collection. Defaults to 500ms.
	SampleInterval time.Duration

	// QueueSize bounds the continuous-mode sample queue. Defaults to 64.
	QueueSize int

	// Dialer overrides the serial dialer.
	Dialer Dialer

	// Scenarios is the synthetic fallback table for one-shot collections
	// with no device attached. Nil selects DefaultScenarios; an empty
	// non-nil slice disables synthesis.
	Scenarios []Scenario

	// Rand drives scenario selection and jitter.
	Rand *rand.Rand

	// Logger receives structured gateway logs.
	Logger *slog.Logger
}

// Gateway owns the physical link lifecycle and the continuous parse loop.
// The link is a single-writer, single-reader resource: the continuous handler
// and a one-shot collection never process inbound data concurrently.
type Gateway struct {
	opts Options
	log  log.Logger
	rand *rand.Rand

	state   atomic.Int32
	running atomic.Bool
	samples chan RawSample

	mu         sync.Mutex
	link       io.ReadWriteCloser
	capture    chan<- RawSample
	collecting bool
}

// New constructs a gateway; it does not touch the device until Start.
func New(opts Options) *Gateway {
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.CollectWindow <= 0 {
		opts.CollectWindow = 5 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 500 * time.Millisecond
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Scenarios == nil {
		opts.Scenarios = DefaultScenarios()
	}
	if opts.Dialer == nil {
		opts.Dialer = serialDialer(opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(
			wallclock.Instance.Now().UnixNano(),
		)) // #nosec G404
	}

	g := &Gateway{
		opts:    opts,
		log:     log.Wrap(opts.Logger),
		rand:    opts.Rand,
		samples: make(chan RawSample, opts.QueueSize),
	}
	g.state.Store(int32(StateIdle))
	return g
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Samples returns the continuous-mode sample stream. The channel stays open
// across reconnections.
func (g *Gateway) Samples() <-chan RawSample {
	return g.samples
}

// Start opens the link and begins the continuous read loop in the
// background. The initial open uses the same bounded retry policy as
// reconnection; if it is exhausted the gateway is left disconnected and the
// final link error is returned. Returns a StateError if already running.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return &StateError{State: g.State()}
	}

	g.setState(ctx, StateConnecting)
	link, err := g.connect(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			g.setState(ctx, StateIdle)
		} else {
			g.setState(ctx, StateDisconnected)
		}
		g.running.Store(false)
		return err
	}

	g.setLink(link)
	g.setState(ctx, StateConnected)
	go g.readLoop(ctx)
	return nil
}

// Close releases the link, unblocking the read loop so that a cancelled
// context can take effect.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.link == nil {
		return nil
	}
	err := g.link.Close()
	g.link = nil
	return err
}

// connect makes up to MaxReconnects attempts with ReconnectDelay between
// them. Every wait is cancellable through the context.
func (g *Gateway) connect(ctx context.Context) (io.ReadWriteCloser, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		g.log.Info(ctx, "connecting to sensor device",
			slog.Int("attempt", attempt),
			slog.Int("max", g.opts.MaxReconnects),
		)

		link, err := g.opts.Dialer(ctx)
		if err == nil {
			return link, nil
		}
		lastErr = err
		g.log.Err(ctx, err)

		if attempt == g.opts.MaxReconnects {
			return nil, &LinkError{
				message: fmt.Sprintf(
					"giving up after %d connection attempts",
					g.opts.MaxReconnects,
				),
				wrapped: lastErr,
			}
		}
		if err := wallclock.Sleep(ctx, g.opts.ReconnectDelay); err != nil {
			return nil, err
		}
	}
}

// readLoop is the continuous mode: parse each inbound line and queue the
// resulting sample, reconnecting on link loss until the retry bound is
// exhausted.
func (g *Gateway) readLoop(ctx context.Context) {
	defer g.running.Store(false)

	for {
		link := g.currentLink()
		if link == nil {
			g.setState(ctx, StateIdle)
			return
		}

		scanner := bufio.NewScanner(link)
		for scanner.Scan() {
			if ctx.Err() != nil {
				break
			}
			g.handleLine(ctx, scanner.Text())
		}

		_ = g.Close()

		if ctx.Err() != nil {
			g.setState(ctx, StateIdle)
			return
		}

		if err := scanner.Err(); err != nil {
			g.log.Err(ctx, &LinkError{message: "device link lost", wrapped: err})
		} else {
			g.log.Warn(ctx, "device closed the link")
		}

		g.setState(ctx, StateConnecting)
		link, err := g.connect(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				g.setState(ctx, StateIdle)
			} else {
				g.log.Err(ctx, err)
				g.setState(ctx, StateDisconnected)
			}
			return
		}
		g.setLink(link)
		g.setState(ctx, StateConnected)
	}
}

// handleLine parses one inbound line. Parse failures are logged and dropped;
// they never halt the loop. Parsed samples are routed to the active one-shot
// collection when one holds the link, otherwise to the continuous queue.
func (g *Gateway) handleLine(ctx context.Context, line string) {
	sample, err := ParseLine(line)
	if err != nil {
		g.log.Err(ctx, err)
		return
	}
	sample.CapturedAt = wallclock.Instance.Now()

	g.mu.Lock()
	capture := g.capture
	g.mu.Unlock()

	if capture != nil {
		select {
		case capture <- sample:
		default:
		}
		return
	}

	select {
	case g.samples <- sample:
	default:
		g.log.Warn(ctx, "sample queue full; dropping sample")
	}
}

func (g *Gateway) setState(ctx context.Context, s State) {
	prev := State(g.state.Swap(int32(s)))
	if prev != s {
		g.log.Info(ctx, "gateway state changed",
			slog.String("from", prev.String()),
			slog.String("to", s.String()),
		)
	}
}

func (g *Gateway) setLink(link io.ReadWriteCloser) {
	g.mu.Lock()
	g.link = link
	g.mu.Unlock()
}

func (g *Gateway) currentLink() io.ReadWriteCloser {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link
}
