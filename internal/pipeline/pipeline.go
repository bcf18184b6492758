package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
	"github.com/crimson-sun/fortiwatch/internal/engine"
	"github.com/crimson-sun/fortiwatch/internal/logging"
	"github.com/crimson-sun/fortiwatch/internal/metrics"
	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/output"
	"github.com/crimson-sun/fortiwatch/internal/retry"
)

// DefaultInterval is the poll interval used when no schedule is given.
const DefaultInterval = 30 * time.Second

// UpdateFunc receives the window contents after every cycle together with
// the cycle's error, if any. A failed cycle reports the unchanged window.
type UpdateFunc func(records []model.Record, err error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRetry sets the retry policy of a cycle.
func WithRetry(p retry.Policy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithQuery overrides the query sent on every fetch.
func WithQuery(q connector.QueryParams) Option {
	return func(pl *Pipeline) { pl.query = q }
}

// WithBufferSize sets the window capacity.
func WithBufferSize(n int) Option {
	return func(pl *Pipeline) { pl.window = NewWindow(n) }
}

// WithSchedule sets the poll schedule used by Start.
func WithSchedule(s cron.Schedule) Option {
	return func(pl *Pipeline) { pl.schedule = s }
}

// WithOutput receives every record that enters the window for the first time.
// A record evicted and later fetched again is not written twice unless the
// window has since forgotten its ID (see Window).
func WithOutput(out output.Output) Option {
	return func(pl *Pipeline) { pl.out = out }
}

// WithOnUpdate registers the per-cycle callback.
func WithOnUpdate(f UpdateFunc) Option {
	return func(pl *Pipeline) { pl.onUpdate = f }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) { pl.log = l }
}

// Pipeline runs fetch cycles against one connector and keeps the merged
// result in its Window. Cycles may overlap; Refresh and the poller can run
// concurrently.
type Pipeline struct {
	conn     connector.Connector
	engine   *engine.Engine
	policy   retry.Policy
	query    connector.QueryParams
	window   *Window
	schedule cron.Schedule
	out      output.Output
	onUpdate UpdateFunc
	log      *slog.Logger

	mu      sync.Mutex
	state   model.State
	lastErr error
	poller  *Poller
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		conn:     conn,
		engine:   eng,
		policy:   retry.DefaultPolicy(),
		query:    connector.DefaultQuery,
		window:   NewWindow(0),
		schedule: Every(DefaultInterval),
		onUpdate: func([]model.Record, error) {},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = engine.New(nil)
	}
	if p.onUpdate == nil {
		p.onUpdate = func([]model.Record, error) {}
	}
	if pr, ok := conn.(connector.PhaseReporter); ok {
		pr.SetPhaseHook(p.setState)
	}
	return p
}

// Window returns the pipeline's record buffer.
func (p *Pipeline) Window() *Window { return p.window }

// Records returns a snapshot of the window, newest first.
func (p *Pipeline) Records() []model.Record { return p.window.Snapshot() }

// State returns the current phase.
func (p *Pipeline) State() model.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the error of the most recent completed cycle, or nil if
// it succeeded.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Pipeline) setState(s model.State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Cycle fetches, normalizes and merges once, retrying the fetch under the
// pipeline's policy. On success it returns the normalized batch of this
// cycle; Records returns the merged window. When every attempt fails it
// returns a *FetchError and leaves the window untouched. If ctx is already
// done, or the pipeline is stopped or reset before or during the cycle,
// ErrStale is returned and no further fetch is attempted.
func (p *Pipeline) Cycle(ctx context.Context) ([]model.Record, error) {
	gen := p.window.Generation()
	if ctx.Err() != nil || p.window.Closed() {
		return nil, ErrStale
	}
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	raws, err := p.fetch(ctx, gen)
	if err != nil {
		if errors.Is(err, ErrStale) || p.window.Generation() != gen {
			p.setState(model.StateIdle)
			return nil, ErrStale
		}
		return nil, p.fail(err)
	}

	p.setState(model.StateNormalizing)
	records := p.engine.ProcessBatch(raws)

	fresh, ok := p.window.Apply(gen, records)
	if !ok {
		p.log.Debug("discarding stale cycle result", logging.Records(len(records)))
		p.setState(model.StateIdle)
		return nil, ErrStale
	}
	p.setState(model.StateMerged)
	metrics.Cycles.WithLabelValues("success").Inc()

	if p.out != nil && len(fresh) > 0 {
		if err := output.WriteAll(ctx, p.out, fresh); err != nil {
			p.log.Warn("output write failed", logging.Error(err))
		}
	}

	snapshot := p.window.Snapshot()
	p.mu.Lock()
	p.lastErr = nil
	p.mu.Unlock()
	p.log.Debug("cycle complete",
		logging.Records(len(records)),
		slog.Int("new", len(fresh)),
		logging.Duration(time.Since(start)),
	)
	p.onUpdate(snapshot, nil)
	p.setState(model.StateIdle)
	return records, nil
}

func (p *Pipeline) fetch(ctx context.Context, gen uint64) ([]model.RawRecord, error) {
	_, reportsPhase := p.conn.(connector.PhaseReporter)

	var raws []model.RawRecord
	err := retry.Do(ctx, p.policy, func(ctx context.Context, attempt int) error {
		if p.window.Generation() != gen {
			return retry.Permanent(ErrStale)
		}
		metrics.FetchAttempts.Inc()
		if !reportsPhase {
			p.setState(model.StateFetching)
		}
		r, err := p.conn.Fetch(ctx, p.query)
		if err != nil {
			kind := httpclient.Classify(err).Kind
			metrics.FetchErrors.WithLabelValues(kind.String()).Inc()
			p.log.Warn("fetch attempt failed", logging.Attempt(attempt), logging.Kind(kind), logging.Error(err))
			return err
		}
		raws = r
		return nil
	})
	return raws, err
}

func (p *Pipeline) fail(err error) error {
	ferr := &FetchError{Err: err}
	metrics.Cycles.WithLabelValues("failure").Inc()
	p.log.Error("fetch cycle failed", logging.Kind(ferr.Kind()), logging.Error(err))

	p.mu.Lock()
	p.state = model.StateFailed
	p.lastErr = ferr
	p.mu.Unlock()

	p.onUpdate(p.window.Snapshot(), ferr)
	p.setState(model.StateIdle)
	return ferr
}

// Refresh runs one cycle on demand and returns the merged window.
func (p *Pipeline) Refresh(ctx context.Context) ([]model.Record, error) {
	if _, err := p.Cycle(ctx); err != nil {
		return nil, err
	}
	return p.window.Snapshot(), nil
}

// Start runs one cycle immediately in the background and then polls on the
// pipeline's schedule until Stop or until ctx is done. Start on a running
// pipeline does nothing.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poller != nil {
		return
	}

	p.window.Open()
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.poller = NewPoller(p.schedule, p.tick)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.tick(ctx)
	}()
	p.poller.Start(ctx)
}

// tick runs a scheduled cycle. Failures reach callers through the update
// callback and LastError.
func (p *Pipeline) tick(ctx context.Context) {
	p.Cycle(ctx)
}

// Stop cancels polling, waits for in-flight scheduled cycles and closes the
// window so that any cycle still running (for example a Refresh) discards
// its result. Stop is idempotent. It must not be called from the update
// callback.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	poller, cancel := p.poller, p.cancel
	p.poller, p.cancel = nil, nil
	p.mu.Unlock()

	p.window.Close()
	if poller == nil {
		return
	}
	cancel()
	poller.Stop()
	p.wg.Wait()
}

// Running reports whether polling is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poller != nil
}

// TestConnection checks the connector without touching the window.
func (p *Pipeline) TestConnection(ctx context.Context) connector.Verdict {
	return p.conn.Test(ctx)
}

// Close stops the pipeline and closes its output.
func (p *Pipeline) Close() error {
	p.Stop()
	if p.out != nil {
		return p.out.Close()
	}
	return nil
}
