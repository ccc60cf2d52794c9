// Package dispatch fans a file's rule set out over a fixed pool of worker
// goroutines, each owning its own matcher.Executor and caches.
//
// There is no queue: a batch goes to a worker only if one is idle at that
// moment, otherwise it runs on the calling goroutine. A batch that times out
// or whose worker fails is also rerun on the calling goroutine, so a file
// never fails because of the pool.
package dispatch

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/praetorian-inc/vuescan/pkg/matcher"
	"github.com/praetorian-inc/vuescan/pkg/metrics"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// DefaultBatchTimeout bounds how long the caller waits for one batch.
const DefaultBatchTimeout = 30 * time.Second

// Fallback reasons.
const (
	FallbackBusy        = "busy"
	FallbackTimeout     = "timeout"
	FallbackWorkerError = "worker_error"
)

// Options configures a Pool.
type Options struct {
	// Size is the number of workers. Default: max(1, NumCPU-1)
	Size int

	// BatchTimeout is how long to wait for a dispatched batch before
	// running it on the calling goroutine. Default: 30 seconds
	BatchTimeout time.Duration

	// Executor configures the executor each worker creates.
	Executor matcher.Options

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DefaultSize returns max(1, NumCPU-1), keeping a core for the caller.
func DefaultSize() int {
	return max(1, runtime.NumCPU()-1)
}

// batchFunc runs one batch on an executor.
type batchFunc func(exec *matcher.Executor, rules []*types.Rule, filePath, content string) []*types.Finding

func executeBatch(exec *matcher.Executor, rules []*types.Rule, filePath, content string) []*types.Finding {
	return exec.ExecuteRules(rules, filePath, content, 0)
}

type job struct {
	rules    []*types.Rule
	filePath string
	content  string
	reply    chan jobResult // buffered so a late worker never blocks
}

// worker is one goroutine's mailbox. jobs has room for exactly one batch,
// which is only sent after the worker id was taken from the idle list.
type worker struct {
	id   int
	jobs chan job
}

type jobResult struct {
	findings []*types.Finding
	err      error
}

// Pool is a lazily started set of long-lived workers.
//
// Execute and ResetCaches must be serialized by the caller. Stats and
// Shutdown may run alongside them.
type Pool struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
	run     batchFunc

	// local runs fallback batches on the calling goroutine
	local *matcher.Executor

	mu         sync.Mutex
	started    bool
	idle       chan *worker // workers waiting for a batch
	quit       chan struct{}
	wg         sync.WaitGroup
	localStats matcher.Stats // copy of local.Stats taken under mu

	busy       atomic.Int64
	dispatched atomic.Int64
	fallbacks  [3]atomic.Int64 // busy, timeout, worker_error
}

// New creates a pool. No goroutines start until the first Execute.
func New(opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = DefaultSize()
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Executor.Logger == nil {
		opts.Executor.Logger = logger
	}
	if opts.Executor.Metrics == nil {
		opts.Executor.Metrics = opts.Metrics
	}

	return &Pool{
		opts:    opts,
		logger:  logger.Named("dispatch"),
		metrics: opts.Metrics,
		run:     executeBatch,
		local:   matcher.NewExecutor(opts.Executor),
	}
}

// Size returns the configured number of workers.
func (p *Pool) Size() int {
	return p.opts.Size
}

func (p *Pool) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}

	// every worker is on the idle list before start returns, so the first
	// Execute can dispatch without waiting for goroutines to be scheduled
	p.idle = make(chan *worker, p.opts.Size)
	p.quit = make(chan struct{})
	for i := 0; i < p.opts.Size; i++ {
		w := &worker{id: i, jobs: make(chan job, 1)}
		p.idle <- w
		p.wg.Add(1)
		go p.work(w, p.idle, p.quit)
	}
	p.started = true
	p.logger.Debug("worker pool started", zap.Int("workers", p.opts.Size))
}

func (p *Pool) work(w *worker, idle chan<- *worker, quit <-chan struct{}) {
	defer p.wg.Done()
	exec := matcher.NewExecutor(p.opts.Executor)

	for {
		select {
		case <-quit:
			// a batch handed over just before Shutdown still gets an answer
			select {
			case j := <-w.jobs:
				res := p.runSafe(exec, j)
				p.busy.Add(-1)
				j.reply <- res
			default:
			}
			return
		case j := <-w.jobs:
			res := p.runSafe(exec, j)
			if res.err != nil {
				// caches may be half-updated after a panic
				exec = matcher.NewExecutor(p.opts.Executor)
				p.logger.Warn("worker failed", zap.Int("worker", w.id), zap.Error(res.err))
			}
			// back on the idle list before the reply, so a caller that
			// has its result can dispatch to this worker again
			p.busy.Add(-1)
			idle <- w
			j.reply <- res
		}
	}
}

func (p *Pool) runSafe(exec *matcher.Executor, j job) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			res = jobResult{err: fmt.Errorf("worker panic: %v", r)}
		}
	}()
	return jobResult{findings: p.run(exec, j.rules, j.filePath, j.content)}
}

// pending is a dispatched batch awaiting its reply.
type pending struct {
	reply    chan jobResult
	deadline time.Time
}

// Execute splits rules into at most batches contiguous batches, runs them
// and returns the findings concatenated in batch order, truncated to limit
// (limit <= 0 means unlimited). batches <= 0 uses one batch per worker.
func (p *Pool) Execute(rules []*types.Rule, filePath, content string, batches, limit int) []*types.Finding {
	if batches <= 0 {
		batches = p.opts.Size
	}
	parts := splitBatches(rules, batches)
	if len(parts) == 0 {
		return make([]*types.Finding, 0)
	}
	p.start()

	results := make([][]*types.Finding, len(parts))
	waits := make([]*pending, len(parts))
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	for i, part := range parts {
		select {
		case w := <-idle:
			reply := make(chan jobResult, 1)
			p.busy.Add(1)
			w.jobs <- job{rules: part, filePath: filePath, content: content, reply: reply}
			p.dispatched.Add(1)
			p.metrics.RecordDispatch()
			waits[i] = &pending{reply: reply, deadline: time.Now().Add(p.opts.BatchTimeout)}
		default:
			p.fallback(FallbackBusy, i, nil)
			results[i] = p.runLocal(part, filePath, content)
		}
	}

	for i, w := range waits {
		if w == nil {
			continue
		}
		timer := time.NewTimer(time.Until(w.deadline))
		select {
		case res := <-w.reply:
			if res.err != nil {
				p.fallback(FallbackWorkerError, i, res.err)
				results[i] = p.runLocal(parts[i], filePath, content)
			} else {
				results[i] = res.findings
			}
		case <-timer.C:
			p.fallback(FallbackTimeout, i, nil)
			results[i] = p.runLocal(parts[i], filePath, content)
		}
		timer.Stop()
	}

	p.snapshotLocal()
	return merge(results, limit)
}

func (p *Pool) snapshotLocal() {
	s := p.local.Stats()
	p.mu.Lock()
	p.localStats = s
	p.mu.Unlock()
}

func (p *Pool) runLocal(rules []*types.Rule, filePath, content string) []*types.Finding {
	return p.run(p.local, rules, filePath, content)
}

func (p *Pool) fallback(reason string, batch int, err error) {
	switch reason {
	case FallbackBusy:
		p.fallbacks[0].Add(1)
		p.logger.Debug("no idle worker, running batch synchronously", zap.Int("batch", batch))
	case FallbackTimeout:
		p.fallbacks[1].Add(1)
		p.logger.Warn("batch timed out, running synchronously",
			zap.Int("batch", batch),
			zap.Duration("timeout", p.opts.BatchTimeout))
	case FallbackWorkerError:
		p.fallbacks[2].Add(1)
		p.logger.Warn("worker error, running batch synchronously", zap.Int("batch", batch), zap.Error(err))
	}
	p.metrics.RecordFallback(reason)
}

// splitBatches cuts rules into at most n contiguous batches of
// ceil(len/n) rules each.
func splitBatches(rules []*types.Rule, n int) [][]*types.Rule {
	if len(rules) == 0 || n <= 0 {
		return nil
	}
	size := (len(rules) + n - 1) / n
	out := make([][]*types.Rule, 0, n)
	for i := 0; i < len(rules); i += size {
		end := min(i+size, len(rules))
		out = append(out, rules[i:end])
	}
	return out
}

// merge concatenates batch results in batch order and applies the cap.
func merge(results [][]*types.Finding, limit int) []*types.Finding {
	out := make([]*types.Finding, 0)
	for _, r := range results {
		for _, f := range r {
			if limit > 0 && len(out) >= limit {
				return out
			}
			out = append(out, f)
		}
	}
	return out
}

// Stats is a snapshot of pool state.
type Stats struct {
	Initialized bool             `json:"initialized"`
	Workers     int              `json:"workers"`
	BusyWorkers int              `json:"busyWorkers"`
	IdleWorkers int              `json:"idleWorkers"`
	Dispatched  int64            `json:"dispatched"`
	Fallbacks   map[string]int64 `json:"fallbacks"`
	Local       matcher.Stats    `json:"local"`
}

// Stats reports worker counts and dispatch counters. Worker executors'
// counters are private to their goroutines and not included; Local covers
// batches run on the calling goroutine, as of the last Execute.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	started := p.started
	local := p.localStats
	p.mu.Unlock()

	s := Stats{
		Initialized: started,
		Dispatched:  p.dispatched.Load(),
		Fallbacks: map[string]int64{
			FallbackBusy:        p.fallbacks[0].Load(),
			FallbackTimeout:     p.fallbacks[1].Load(),
			FallbackWorkerError: p.fallbacks[2].Load(),
		},
		Local: local,
	}
	if started {
		s.Workers = p.opts.Size
		s.BusyWorkers = int(p.busy.Load())
		s.IdleWorkers = s.Workers - s.BusyWorkers
	}
	return s
}

// Shutdown stops every worker and waits for in-flight batches to finish.
// The pool restarts on the next Execute. Safe to call on a pool that never
// started, and more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	close(p.quit)
	p.started = false
	p.idle = nil
	p.quit = nil
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("worker pool stopped")
}

// ResetCaches clears the local executor's caches. Worker caches are
// dropped by Shutdown.
func (p *Pool) ResetCaches() {
	p.local.Reset()
	p.snapshotLocal()
}
