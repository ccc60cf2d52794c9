// Package matcher runs the per-file detection loop: select rules under a
// budget, prefilter their patterns, run the survivors and turn matches into
// enriched, capped findings.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"github.com/praetorian-inc/vuescan/pkg/index"
	"github.com/praetorian-inc/vuescan/pkg/metrics"
	"github.com/praetorian-inc/vuescan/pkg/prefilter"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// RuleSource supplies the priority-ordered rules applicable to a file.
// *index.Index implements it.
type RuleSource interface {
	ApplicableRules(filePath string) ([]*types.Rule, error)
}

// SelectRules returns the rules for filePath whose priority reaches the
// budget threshold, truncated to the budget's rule cap. Source order is kept,
// so truncation drops the lowest-priority rules first.
func SelectRules(src RuleSource, filePath string, budget types.Budget) ([]*types.Rule, error) {
	rules, err := src.ApplicableRules(filePath)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if index.Priority(r) >= budget.PriorityThreshold {
			out = append(out, r)
		}
	}
	if budget.MaxRulesPerFile > 0 && len(out) > budget.MaxRulesPerFile {
		out = out[:budget.MaxRulesPerFile]
	}
	return out, nil
}

// Executor owns a prefilter and a compiled-regex cache and runs rules
// against file content.
//
// Thread Safety: Executor is NOT safe for concurrent use. Its caches are
// unsynchronized; give each goroutine its own Executor.
type Executor struct {
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Metrics
	filter   *prefilter.Prefilter
	regexes  *regexCache
	suppress suppressor
	minConf  int

	stats Stats
}

// NewExecutor creates an executor with empty caches.
func NewExecutor(opts Options) *Executor {
	if opts.RegexTimeout <= 0 {
		opts.RegexTimeout = DefaultRegexTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("matcher")

	e := &Executor{
		opts:     opts,
		logger:   logger,
		metrics:  opts.Metrics,
		filter:   prefilter.New(),
		regexes:  newRegexCache(opts.RegexTimeout, opts.OptimizePatterns, logger, opts.Metrics),
		suppress: newSuppressor(opts.Suppressions),
	}
	if opts.MinConfidence != "" {
		e.minConf = opts.MinConfidence.Rank()
	}
	return e
}

// Execute selects the rules for filePath from src under budget and runs
// them against content. It fails only when src does, for example before the
// index is initialized.
func (e *Executor) Execute(src RuleSource, filePath, content string, budget types.Budget) ([]*types.Finding, error) {
	rules, err := SelectRules(src, filePath, budget)
	if err != nil {
		return nil, err
	}
	return e.ExecuteRules(rules, filePath, content, budget.FindingCap()), nil
}

// ExecuteUnlimited is Execute without rule or finding caps.
func (e *Executor) ExecuteUnlimited(src RuleSource, filePath, content string) ([]*types.Finding, error) {
	return e.Execute(src, filePath, content, types.Budget{})
}

// candidate is one pattern of one rule.
type candidate struct {
	rule *types.Rule
	spec types.PatternSpec
}

// ExecuteRules runs rules, in order, against content and returns at most
// limit findings (limit <= 0 means unlimited). Findings come out in rule
// order, then pattern order, then match position. The result is never nil
// and a malformed pattern never fails the call.
func (e *Executor) ExecuteRules(rules []*types.Rule, filePath, content string, limit int) []*types.Finding {
	findings := make([]*types.Finding, 0)
	e.stats.RulesSelected += len(rules)
	if e.suppress.file(filePath) {
		return findings
	}

	var cands []candidate
	var specs []types.PatternSpec
	for _, r := range rules {
		for _, spec := range r.Patterns {
			cands = append(cands, candidate{rule: r, spec: spec})
			specs = append(specs, spec)
		}
	}

	passed := e.filter.BatchQuickCheck(content, specs)
	e.stats.PatternsChecked += len(specs)
	e.stats.PatternsPassed += len(passed)
	e.metrics.RecordPrefilter(len(specs), len(passed))
	if len(passed) == 0 {
		return findings
	}

	run := &fileRun{
		filePath: filePath,
		ext:      strings.ToLower(filepath.Ext(filePath)),
		runes:    []rune(content),
		limit:    limit,
	}
	run.lines = types.NewLineIndex(run.runes)
	if e.opts.Dedupe {
		run.dedup = NewDeduplicator()
	}

	for _, i := range passed {
		if run.full() {
			break
		}
		c := cands[i]
		if e.suppress.pattern(c.spec.Pattern) {
			continue
		}
		re := e.regexes.get(c.spec)
		if re == nil {
			continue
		}
		e.matchPattern(run, c, re)
	}

	e.stats.Findings += len(run.findings)
	for _, f := range run.findings {
		e.metrics.RecordFinding(string(f.Severity))
	}
	if run.findings == nil {
		return findings
	}
	return run.findings
}

// fileRun is the state of one ExecuteRules call.
type fileRun struct {
	filePath string
	ext      string
	runes    []rune
	lines    *types.LineIndex
	dedup    *Deduplicator
	limit    int
	findings []*types.Finding
}

func (r *fileRun) full() bool {
	return r.limit > 0 && len(r.findings) >= r.limit
}

// matchPattern iterates every non-overlapping match of re. A zero-width
// match advances the cursor by one character.
func (e *Executor) matchPattern(run *fileRun, c candidate, re *regexp2.Regexp) {
	e.stats.Executions++
	e.metrics.RecordExecution()

	pos := 0
	for pos <= len(run.runes) && !run.full() {
		m, err := re.FindRunesMatchStartingAt(run.runes, pos)
		if err != nil {
			if isTimeout(err) {
				e.stats.Timeouts++
				e.metrics.RecordTimeout()
				e.logger.Warn("regex timeout, skipping rest of pattern for this file",
					zap.String("rule", c.rule.ID),
					zap.String("key", c.spec.Key),
					zap.String("file", run.filePath))
			} else {
				e.logger.Warn("regex error, skipping rest of pattern for this file",
					zap.String("rule", c.rule.ID),
					zap.String("key", c.spec.Key),
					zap.Error(err))
			}
			return
		}
		if m == nil {
			return
		}
		e.stats.Matches++

		matched := run.runes[m.Index : m.Index+m.Length]
		if f := e.newFinding(run, c, m.Index, matched); f != nil {
			run.findings = append(run.findings, f)
		}

		pos = m.Index + m.Length
		if m.Length == 0 {
			pos++
		}
	}
}

// newFinding enriches a match. It returns nil when the finding is
// suppressed, below the minimum confidence or a duplicate.
func (e *Executor) newFinding(run *fileRun, c candidate, offset int, matched []rune) *types.Finding {
	line := run.lines.Line(offset)
	if e.suppress.line(run.filePath, line) {
		return nil
	}

	text := string(matched)
	signals := detectSignals(run.lines.WindowText(line, signalRadius))
	conf := confidence(signals, text)
	if conf.Rank() < e.minConf {
		return nil
	}

	f := &types.Finding{
		ID:              uuid.NewString(),
		RuleID:          c.rule.ID,
		Type:            c.rule.Name,
		Severity:        escalate(c.rule.Severity, signals, c.rule.Category, run.ext),
		Confidence:      conf,
		File:            run.filePath,
		Line:            line,
		CodeSnippet:     snippet(matched),
		Context:         run.lines.Window(line, contextRadius),
		DataFlowSignals: signals,
		Description:     c.rule.Description,
		Recommendation:  c.rule.Recommendation,
		PatternKey:      c.spec.Key,
	}

	if run.dedup != nil {
		if run.dedup.IsDuplicate(f, text) {
			return nil
		}
		run.dedup.Add(f, text)
	}
	return f
}

// Stats returns the executor's counters and cache sizes.
func (e *Executor) Stats() Stats {
	s := e.stats
	s.Compilations = e.regexes.compilations
	s.CompileErrors = e.regexes.compileErrors
	s.CachedRegexes = e.regexes.size()
	s.Prefilter = e.filter.Stats()
	return s
}

// Reset clears the regex and prefilter caches and zeroes the counters.
func (e *Executor) Reset() {
	e.regexes.reset()
	e.filter.Reset()
	e.stats = Stats{}
}
