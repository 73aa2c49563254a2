package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// DefaultMaxConcurrency caps simultaneous captures.
const DefaultMaxConcurrency = 4

// JobState is the lifecycle state of one viewport capture.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobRunning JobState = "RUNNING"
	JobDone    JobState = "DONE"
	JobFailed  JobState = "FAILED"
)

// JobEvent reports a job state transition.
type JobEvent struct {
	Index    int
	Viewport models.ViewportSpec
	State    JobState
	Err      error
	At       time.Time
}

// JobResult is the outcome of one viewport capture.
type JobResult struct {
	Viewport   models.ViewportSpec
	State      JobState
	Screenshot *models.Screenshot
	Err        error
	// Cancelled is set when the run context ended before the job finished.
	Cancelled bool
	Duration  time.Duration
}

// Capturer captures a single viewport. *Service implements it.
type Capturer interface {
	Capture(ctx context.Context, url string, viewport models.ViewportSpec, timeout time.Duration) (*models.Screenshot, error)
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxConcurrency caps simultaneous captures. Default: 4.
	MaxConcurrency int

	// Events receives job transitions when non-nil. Sends never block, so
	// the channel should be buffered.
	Events chan<- JobEvent

	Logger *slog.Logger
}

// Pool runs viewport captures concurrently with a bounded worker count.
type Pool struct {
	capturer Capturer
	cfg      PoolConfig
}

// NewPool creates a Pool.
func NewPool(capturer Capturer, cfg PoolConfig) *Pool {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{capturer: capturer, cfg: cfg}
}

// Run captures url at every viewport. A positive timeout bounds the whole
// run; jobs still outstanding when it expires are cancelled. Results are
// returned in the order of viewports regardless of completion order.
func (p *Pool) Run(ctx context.Context, url string, viewports []models.ViewportSpec, timeout time.Duration) []JobResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make([]JobResult, len(viewports))
	for i, vp := range viewports {
		results[i] = JobResult{Viewport: vp, State: JobPending}
		p.emit(i, vp, JobPending, nil)
	}
	if len(viewports) == 0 {
		return results
	}

	limit := p.cfg.MaxConcurrency
	if len(viewports) < limit {
		limit = len(viewports)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(limit)

	for i, vp := range viewports {
		g.Go(func() error {
			res := p.runJob(ctx, i, url, vp)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (p *Pool) runJob(ctx context.Context, index int, url string, vp models.ViewportSpec) JobResult {
	res := JobResult{Viewport: vp}

	if err := ctx.Err(); err != nil {
		res.State = JobFailed
		res.Err = newCaptureError(ctx, KindTimeout, vp.Name, errors.New("not started"))
		res.Cancelled = true
		p.emit(index, vp, JobFailed, res.Err)
		return res
	}

	p.emit(index, vp, JobRunning, nil)
	start := time.Now()
	shot, err := p.capturer.Capture(ctx, url, vp, 0)
	res.Duration = time.Since(start)

	if err != nil {
		res.State = JobFailed
		res.Err = err
		res.Cancelled = ctx.Err() != nil
		p.cfg.Logger.Warn("capture: viewport failed",
			"viewport", vp.String(), "cancelled", res.Cancelled, "error", err)
		p.emit(index, vp, JobFailed, err)
		return res
	}

	res.State = JobDone
	res.Screenshot = shot
	p.cfg.Logger.Info("capture: viewport done", "viewport", vp.String(), "duration", res.Duration)
	p.emit(index, vp, JobDone, nil)
	return res
}

func (p *Pool) emit(index int, vp models.ViewportSpec, state JobState, err error) {
	if p.cfg.Events == nil {
		return
	}
	ev := JobEvent{Index: index, Viewport: vp, State: state, Err: err, At: time.Now()}
	select {
	case p.cfg.Events <- ev:
	default:
		p.cfg.Logger.Debug("capture: dropped job event", "viewport", vp.Name, "state", state)
	}
}
