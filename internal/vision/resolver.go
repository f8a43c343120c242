package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/llmclient"
	"github.com/xkilldash9x/clickpilot/internal/llmutil"
)

const (
	pointSystemPrompt = "You are selecting a single click target on the image. " +
		"Output ONLY JSON (no markdown fences, no prose) with keys x:int,y:int,double:bool. " +
		"Coordinates are CSS/viewport pixels relative to the visible page (top-left). " +
		"Be specific, do not estimate."
	pointPromptSuffix = "\nReturn only JSON in the exact form {\"x\":int,\"y\":int,\"double\":bool}."
)

// ErrAllSamplesFailed matches any *AllSamplesFailedError.
var ErrAllSamplesFailed = errors.New("all vision samples failed")

// AllSamplesFailedError is returned when no sample produced a point.
type AllSamplesFailedError struct {
	Samples int
	Last    error
}

func (e *AllSamplesFailedError) Error() string {
	return fmt.Sprintf("all %d vision sample(s) failed: %v", e.Samples, e.Last)
}

func (e *AllSamplesFailedError) Unwrap() error { return e.Last }

func (e *AllSamplesFailedError) Is(target error) bool { return target == ErrAllSamplesFailed }

// State is the resolver's lifecycle stage, logged at debug level.
type State string

const (
	StateIdle        State = "idle"
	StateGoverned    State = "governed"
	StateSampling    State = "sampling"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// ArtifactSink stores debug images for the run.
type ArtifactSink interface {
	Name(ctx context.Context, stem, ext string) string
	Write(name string, data []byte) (string, error)
}

// SampleObserver is told how each sample ended and how long it took.
type SampleObserver interface {
	ObserveSample(outcome string, d time.Duration)
}

// Sample outcomes.
const (
	SampleOK     = "ok"
	SampleFailed = "failed"
)

// maxCoordinate bounds a reply's |x| and |y|; anything beyond is malformed.
const maxCoordinate = 1 << 20

// pointReply accepts fractional coordinates and rounds them.
type pointReply struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Double bool     `json:"double"`
}

// Resolver turns a natural-language target description plus a screenshot
// into a viewport point by sampling the point model and aggregating.
type Resolver struct {
	client   llmclient.VisionClient
	governor *Governor
	cfg      config.VisionConfig
	sink     ArtifactSink
	observer SampleObserver
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithArtifacts enables dot-map and overlay debug output.
func WithArtifacts(sink ArtifactSink) ResolverOption {
	return func(r *Resolver) { r.sink = sink }
}

// WithSampleObserver attaches a metrics observer.
func WithSampleObserver(o SampleObserver) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver wires a Resolver. governor may be nil in tests.
func NewResolver(client llmclient.VisionClient, governor *Governor, cfg config.VisionConfig, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		client:   client,
		governor: governor,
		cfg:      cfg,
		logger:   logger.Named("vision.resolver"),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve samples the point model up to the configured number of times
// with bounded concurrency and returns the aggregated point.
func (r *Resolver) Resolve(ctx context.Context, prompt string, screenshot []byte) (Point, error) {
	r.state(StateIdle)
	n := max(r.cfg.Samples, 1)
	limit := max(r.cfg.MaxConcurrency, 1)

	if r.governor != nil && r.governor.ShouldPause() {
		r.state(StateGoverned)
		if err := r.governor.Wait(ctx); err != nil {
			r.state(StateFailed)
			return Point{}, err
		}
	}

	image := r.prepareImage(ctx, screenshot)
	req := llmclient.Request{
		Tier:   llmclient.TierPoint,
		System: pointSystemPrompt,
		Prompt: prompt + pointPromptSuffix,
		Image:  image,
	}

	r.state(StateSampling)
	r.logger.Info("Sampling point model.",
		zap.Int("samples", n),
		zap.Int("max_concurrency", limit),
		zap.Duration("stagger", r.cfg.Stagger))

	var (
		mu      sync.Mutex
		results = make([]Point, 0, n)
		lastErr error
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if n > 1 && r.cfg.Stagger > 0 {
				if err := r.sleep(ctx, r.cfg.Stagger*time.Duration(i%8+1)); err != nil {
					mu.Lock()
					lastErr = err
					mu.Unlock()
					return nil
				}
			}

			start := time.Now()
			p, err := r.sample(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.observeSample(SampleFailed, start)
				r.logger.Warn("Sample failed.", zap.Int("sample", i+1), zap.Error(err))
				lastErr = err
				return nil
			}
			r.observeSample(SampleOK, start)
			r.logger.Info("Sample resolved.",
				zap.Int("sample", i+1), zap.Int("x", p.X), zap.Int("y", p.Y), zap.Bool("double", p.Double))
			results = append(results, p)
			return nil
		})
	}
	_ = g.Wait()

	if len(results) == 0 {
		r.state(StateFailed)
		if ctx.Err() != nil {
			return Point{}, ctx.Err()
		}
		if r.governor != nil {
			r.governor.RecordFailure()
		}
		return Point{}, &AllSamplesFailedError{Samples: n, Last: lastErr}
	}

	r.state(StateAggregating)
	agg := Aggregate(results)
	if n == 1 {
		agg.X += r.cfg.OffsetX
		agg.Y += r.cfg.OffsetY
		results[0] = agg
	}

	r.writeDotMap(ctx, image, results, agg)
	r.state(StateDone)
	r.logger.Info("Point resolved.",
		zap.Int("x", agg.X), zap.Int("y", agg.Y), zap.Bool("double", agg.Double),
		zap.Int("succeeded", len(results)), zap.Int("requested", n))
	return agg, nil
}

func (r *Resolver) sample(ctx context.Context, req llmclient.Request) (Point, error) {
	var got Point
	req.Accept = func(content string) error {
		reply, err := llmutil.ParseJSONResponse[pointReply](content)
		if err != nil {
			return err
		}
		if reply.X == nil || reply.Y == nil {
			return fmt.Errorf("%w: reply lacks x or y", llmutil.ErrMalformedResponse)
		}
		if !inRange(*reply.X) || !inRange(*reply.Y) {
			return fmt.Errorf("%w: coordinates (%g, %g) out of range", llmutil.ErrMalformedResponse, *reply.X, *reply.Y)
		}
		got = Point{X: int(math.Round(*reply.X)), Y: int(math.Round(*reply.Y)), Double: reply.Double}
		return nil
	}
	if _, err := r.client.Complete(ctx, req); err != nil {
		return Point{}, err
	}
	return got, nil
}

func inRange(v float64) bool {
	return math.Abs(v) <= maxCoordinate
}

// prepareImage overlays the grid once per Resolve. A failed overlay falls
// back to the raw screenshot.
func (r *Resolver) prepareImage(ctx context.Context, screenshot []byte) []byte {
	if !r.cfg.Overlay.Enabled {
		return screenshot
	}
	annotated, err := OverlayGrid(screenshot, GridOptions{
		Step:       r.cfg.Overlay.Step,
		LabelEvery: r.cfg.Overlay.LabelEvery,
		FontScale:  r.cfg.Overlay.FontScale,
	})
	if err != nil {
		r.logger.Warn("Grid overlay failed; sending the raw screenshot.", zap.Error(err))
		return screenshot
	}
	if r.cfg.Overlay.SaveDebug && r.sink != nil {
		if path, err := r.sink.Write(r.sink.Name(ctx, "screenshot-grid", "png"), annotated); err != nil {
			r.logger.Warn("Failed to save grid debug image.", zap.Error(err))
		} else {
			r.logger.Debug("Saved grid debug image.", zap.String("path", path))
		}
	}
	return annotated
}

func (r *Resolver) writeDotMap(ctx context.Context, base []byte, samples []Point, agg Point) {
	if r.sink == nil {
		return
	}
	img, err := RenderDotMap(base, samples, agg)
	if err != nil {
		r.logger.Warn("Failed to render dot map.", zap.Error(err))
		return
	}
	path, err := r.sink.Write(r.sink.Name(ctx, "llm-dots", "png"), img)
	if err != nil {
		r.logger.Warn("Failed to write dot map.", zap.Error(err))
		return
	}
	r.logger.Debug("Saved dot map.", zap.String("path", path))
}

func (r *Resolver) observeSample(outcome string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveSample(outcome, time.Since(start))
	}
}

func (r *Resolver) state(s State) {
	r.logger.Debug("Resolver state.", zap.String("state", string(s)))
}
