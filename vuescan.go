// Package vuescan detects vulnerabilities in Vue, mini-program and
// JavaScript source files by matching a declarative rule set against the
// text of one file at a time.
//
// # Basic Usage
//
// Create an engine, initialize it with rules and run Detect per file:
//
//	engine := vuescan.NewEngine()
//	defer engine.Close()
//
//	rules, err := vuescan.LoadBuiltinRules()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Initialize(rules); err != nil {
//	    log.Fatal(err)
//	}
//
//	findings, err := engine.Detect("src/App.vue", content, vuescan.DefaultBudget())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range findings {
//	    fmt.Printf("%s:%d %s (%s)\n", f.File, f.Line, f.Type, f.Severity)
//	}
//
// # Parallel Mode
//
// WithParallel fans the selected rules out over a worker pool. Findings are
// the same as in sequential mode, but only the order within one batch is
// guaranteed:
//
//	engine := vuescan.NewEngine(vuescan.WithParallel(), vuescan.WithPoolSize(4))
package vuescan

import (
	"fmt"
	"sync"
	"time"

	"github.com/praetorian-inc/vuescan/pkg/dispatch"
	"github.com/praetorian-inc/vuescan/pkg/index"
	"github.com/praetorian-inc/vuescan/pkg/matcher"
	"github.com/praetorian-inc/vuescan/pkg/metrics"
	"github.com/praetorian-inc/vuescan/pkg/rule"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Re-export commonly used types so callers can import just the root package.
type (
	// Rule is a named, severity-tagged detection unit.
	Rule = types.Rule

	// Finding is one reported occurrence of a rule in a file.
	Finding = types.Finding

	// Budget bounds the work done for a single file.
	Budget = types.Budget

	// Severity is a finding's impact level.
	Severity = types.Severity

	// Confidence is how certain the engine is that a finding is real.
	Confidence = types.Confidence
)

// ErrNotInitialized is returned by Detect before Initialize succeeds.
var ErrNotInitialized = index.ErrNotInitialized

// DefaultBudget returns threshold 0, 200 rules, 100 findings and auto workers.
func DefaultBudget() Budget {
	return types.DefaultBudget()
}

// Engine runs the detection pipeline for one file at a time.
//
// Thread Safety: Detect calls on one Engine are serialized; the caches
// behind them are not synchronized. Use several engines for concurrent
// scanning in sequential mode, or WithParallel to spread one file's rules
// over a pool.
type Engine struct {
	mu      sync.Mutex
	config  *engineConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	index   *index.Index
	exec    *matcher.Executor
	pool    *dispatch.Pool // nil unless parallel
}

type engineConfig struct {
	logger       *zap.Logger
	registerer   prometheus.Registerer
	parallel     bool
	poolSize     int
	batchTimeout time.Duration
	executor     matcher.Options
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithRegisterer registers engine metrics with reg. Default: no metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *engineConfig) {
		c.registerer = reg
	}
}

// WithParallel runs each file's rules on a worker pool.
func WithParallel() Option {
	return func(c *engineConfig) {
		c.parallel = true
	}
}

// WithPoolSize sets the number of pool workers. Only applies with WithParallel.
// Default is max(1, NumCPU-1).
func WithPoolSize(n int) Option {
	return func(c *engineConfig) {
		c.poolSize = n
	}
}

// WithBatchTimeout sets how long a pool batch may run before it is rerun on
// the calling goroutine. Default is 30 seconds.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.batchTimeout = d
	}
}

// WithRegexTimeout bounds a single regex execution. Default is 5 seconds.
func WithRegexTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.executor.RegexTimeout = d
	}
}

// WithOptimizePatterns rewrites pattern sources into simpler equivalents
// before compiling them.
func WithOptimizePatterns() Option {
	return func(c *engineConfig) {
		c.executor.OptimizePatterns = true
	}
}

// WithDedupe drops repeated findings of one rule on the same line and text.
func WithDedupe() Option {
	return func(c *engineConfig) {
		c.executor.Dedupe = true
	}
}

// WithMinConfidence drops findings below conf.
func WithMinConfidence(conf Confidence) Option {
	return func(c *engineConfig) {
		c.executor.MinConfidence = conf
	}
}

// WithSuppressions drops findings whose pattern source, file basename or
// "basename:line" is listed.
func WithSuppressions(entries ...string) Option {
	return func(c *engineConfig) {
		c.executor.Suppressions = append(c.executor.Suppressions, entries...)
	}
}

// NewEngine creates an uninitialized engine.
func NewEngine(opts ...Option) *Engine {
	config := &engineConfig{
		batchTimeout: dispatch.DefaultBatchTimeout,
		executor:     matcher.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(config)
	}

	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New(config.registerer)
	config.executor.Logger = logger
	config.executor.Metrics = m

	e := &Engine{
		config:  config,
		logger:  logger.Named("engine"),
		metrics: m,
		index:   index.New(logger),
		exec:    matcher.NewExecutor(config.executor),
	}
	if config.parallel {
		e.pool = dispatch.New(dispatch.Options{
			Size:         config.poolSize,
			BatchTimeout: config.batchTimeout,
			Executor:     config.executor,
			Logger:       logger,
			Metrics:      m,
		})
	}
	return e
}

// Initialize validates rules and builds the rule index. Calling it again on
// an initialized engine is a no-op.
func (e *Engine) Initialize(rules []*Rule) error {
	if err := rule.ValidateRuleSet(rules); err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}
	if err := e.index.Initialize(rules); err != nil {
		return fmt.Errorf("building rule index: %w", err)
	}
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (e *Engine) Initialized() bool {
	return e.index.Initialized()
}

// Detect returns the findings for one file under budget. Malformed patterns
// never cause an error; the only error is ErrNotInitialized.
func (e *Engine) Detect(filePath, content string, budget Budget) ([]*Finding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { e.metrics.ObserveDetect(time.Since(start)) }()

	if e.pool == nil {
		return e.exec.Execute(e.index, filePath, content, budget)
	}

	rules, err := matcher.SelectRules(e.index, filePath, budget)
	if err != nil {
		return nil, err
	}
	batches := budget.WorkerCount.Resolve(e.pool.Size())
	findings := e.pool.Execute(rules, filePath, content, batches, budget.FindingCap())
	e.logger.Debug("parallel detect finished",
		zap.String("file", filePath),
		zap.Int("rules", len(rules)),
		zap.Int("batches", batches),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// DetectUnlimited is Detect without rule or finding caps. The budget's
// priority threshold of zero admits every rule.
func (e *Engine) DetectUnlimited(filePath, content string) ([]*Finding, error) {
	return e.Detect(filePath, content, Budget{})
}

// Rules returns the initialized rules in declaration order.
func (e *Engine) Rules() ([]*Rule, error) {
	return e.index.Rules()
}

// FrameworkRules returns the rules targeting a framework such as "vue" or
// "wechat", followed by the general rules.
func (e *Engine) FrameworkRules(framework string) ([]*Rule, error) {
	return e.index.FrameworkRules(framework)
}

// Conflicts returns near-duplicate or inconsistent rule pairs.
func (e *Engine) Conflicts() ([]index.Conflict, error) {
	return e.index.Conflicts()
}

// Stats is a snapshot of the engine's components.
type Stats struct {
	Index    index.Stats     `json:"index"`
	Executor matcher.Stats   `json:"executor"`
	Pool     *dispatch.Stats `json:"pool,omitempty"`
}

// Stats returns index, executor and pool statistics. Executor counts work
// done on the calling goroutine in both modes.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Index:    e.index.Stats(),
		Executor: e.exec.Stats(),
	}
	if e.pool != nil {
		ps := e.pool.Stats()
		s.Pool = &ps
		s.Executor = s.Executor.Add(ps.Local)
	}
	return s
}

// ResetCaches clears every regex, token and complexity cache. Pool workers
// are stopped and come back with empty caches on the next Detect. The rule
// index is kept.
func (e *Engine) ResetCaches() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exec.Reset()
	if e.pool != nil {
		e.pool.Shutdown()
		e.pool.ResetCaches()
	}
}

// Close shuts down the worker pool. The engine can still be used afterwards;
// a parallel engine restarts its pool on the next Detect.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil {
		e.pool.Shutdown()
	}
	return nil
}

// LoadBuiltinRules returns the embedded rule pack.
func LoadBuiltinRules() ([]*Rule, error) {
	return rule.NewLoader().LoadBuiltinRules()
}

// LoadRules loads rules from a YAML or JSON file, or from every rule file
// under a directory.
func LoadRules(path string) ([]*Rule, error) {
	return rule.NewLoader().LoadPath(path)
}
