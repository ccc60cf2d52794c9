package vuescan

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const appVue = `<template>
  <div v-html="message"></div>
  <a :href="url">link</a>
</template>
<script>
export default {
  mounted() {
    const q = this.$route.query.q
    document.getElementById('out').innerHTML = q
    eval(q)
  }
}
</script>
`

func newBuiltinEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(opts...)
	t.Cleanup(func() { _ = e.Close() })

	rules, err := LoadBuiltinRules()
	require.NoError(t, err)
	require.NoError(t, e.Initialize(rules))
	return e
}

func ruleIDs(findings []*Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func withoutIDs(findings []*Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		c := *f
		c.ID = ""
		out = append(out, c)
	}
	return out
}

func TestLoadBuiltinRules(t *testing.T) {
	rules, err := LoadBuiltinRules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	for _, r := range rules {
		assert.NotEmpty(t, r.ID, "rule should have ID")
		assert.NotEmpty(t, r.Name, "rule should have name")
		assert.True(t, r.Severity.Valid(), "rule %s severity", r.ID)
	}
}

func TestDetect_NotInitialized(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	assert.False(t, e.Initialized())
	_, err := e.Detect("App.vue", appVue, DefaultBudget())
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestInitialize_RejectsInvalidRuleSet(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	r := &Rule{ID: "dup", Name: "dup", Severity: types.SeverityHigh,
		Patterns: []types.PatternSpec{{Key: "k", Pattern: "x"}}}
	err := e.Initialize([]*Rule{r, r})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule ID")
	assert.False(t, e.Initialized())
}

func TestInitialize_Idempotent(t *testing.T) {
	e := newBuiltinEngine(t)
	before, err := e.Rules()
	require.NoError(t, err)

	extra := &Rule{ID: "extra", Name: "extra", Severity: types.SeverityLow,
		Patterns: []types.PatternSpec{{Key: "k", Pattern: "extra"}}}
	require.NoError(t, e.Initialize([]*Rule{extra}))

	after, err := e.Rules()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDetect_BuiltinRules(t *testing.T) {
	e := newBuiltinEngine(t)

	findings, err := e.Detect("src/App.vue", appVue, DefaultBudget())
	require.NoError(t, err)
	require.NotEmpty(t, findings)

	ids := ruleIDs(findings)
	assert.Contains(t, ids, "xss-v-html")

	for _, f := range findings {
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, "src/App.vue", f.File)
		assert.GreaterOrEqual(t, f.Line, 1)
		assert.LessOrEqual(t, len([]rune(f.CodeSnippet)), 100)
		assert.NotNil(t, f.DataFlowSignals)
	}
}

func TestDetect_CleanFile(t *testing.T) {
	e := newBuiltinEngine(t)

	findings, err := e.Detect("util.js", "export const add = (a, b) => a + b\n", DefaultBudget())
	require.NoError(t, err)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestDetect_FindingCap(t *testing.T) {
	e := newBuiltinEngine(t)

	budget := DefaultBudget()
	budget.MaxVulnerabilitiesPerFile = 2
	findings, err := e.Detect("App.vue", strings.Repeat(appVue, 5), budget)
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	unlimited, err := e.DetectUnlimited("App.vue", strings.Repeat(appVue, 5))
	require.NoError(t, err)
	assert.Greater(t, len(unlimited), 2)
}

func TestDetect_ParallelMatchesSequential(t *testing.T) {
	seq := newBuiltinEngine(t)
	par := newBuiltinEngine(t, WithParallel(), WithPoolSize(3))

	content := strings.Repeat(appVue, 3)
	budget := DefaultBudget()
	budget.MaxVulnerabilitiesPerFile = 0
	budget.WorkerCount = 4

	want, err := seq.Detect("App.vue", content, budget)
	require.NoError(t, err)
	got, err := par.Detect("App.vue", content, budget)
	require.NoError(t, err)

	assert.ElementsMatch(t, withoutIDs(want), withoutIDs(got))

	stats := par.Stats()
	require.NotNil(t, stats.Pool)
	assert.True(t, stats.Pool.Initialized)
	assert.Equal(t, 3, stats.Pool.Workers)
	assert.Equal(t, int64(3), stats.Pool.Dispatched, "one batch per idle worker")
	assert.Equal(t, int64(1), stats.Pool.Fallbacks["busy"])
	assert.Nil(t, seq.Stats().Pool)
}

func TestDetect_ParallelCapIsGlobal(t *testing.T) {
	e := newBuiltinEngine(t, WithParallel(), WithPoolSize(2))

	budget := DefaultBudget()
	budget.MaxVulnerabilitiesPerFile = 3
	budget.WorkerCount = 2
	findings, err := e.Detect("App.vue", strings.Repeat(appVue, 10), budget)
	require.NoError(t, err)
	assert.Len(t, findings, 3)
}

func TestDetect_Options(t *testing.T) {
	t.Run("suppressed file", func(t *testing.T) {
		e := newBuiltinEngine(t, WithSuppressions("App.vue"))
		findings, err := e.Detect("src/App.vue", appVue, DefaultBudget())
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("min confidence", func(t *testing.T) {
		e := newBuiltinEngine(t, WithMinConfidence(types.ConfidenceHigh))
		findings, err := e.Detect("src/App.vue", appVue, DefaultBudget())
		require.NoError(t, err)
		for _, f := range findings {
			assert.Equal(t, types.ConfidenceHigh, f.Confidence)
		}
	})

	t.Run("optimized patterns", func(t *testing.T) {
		plain := newBuiltinEngine(t)
		optimized := newBuiltinEngine(t, WithOptimizePatterns())

		want, err := plain.Detect("src/App.vue", appVue, DefaultBudget())
		require.NoError(t, err)
		got, err := optimized.Detect("src/App.vue", appVue, DefaultBudget())
		require.NoError(t, err)
		assert.Equal(t, withoutIDs(want), withoutIDs(got))
	})
}

func TestDetect_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newBuiltinEngine(t, WithRegisterer(reg))

	for i := 0; i < 3; i++ {
		_, err := e.Detect(fmt.Sprintf("f%d.vue", i), appVue, DefaultBudget())
		require.NoError(t, err)
	}

	n, err := testutil.GatherAndCount(reg, "vuescan_detect_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Positive(t, testutil.ToFloat64(e.metrics.Executions))
	assert.Positive(t, testutil.ToFloat64(e.metrics.Compilations.WithLabelValues("ok")))
}

func TestDetect_LogsInvalidPattern(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := NewEngine(WithLogger(zap.New(core)))
	defer e.Close()

	broken := &Rule{ID: "broken", Name: "broken", Severity: types.SeverityHigh,
		Patterns: []types.PatternSpec{{Key: "k", Pattern: "token(unclosed"}}}
	require.NoError(t, e.Initialize([]*Rule{broken}))

	findings, err := e.Detect("a.js", "token(unclosed", DefaultBudget())
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, 1, logs.FilterMessage("invalid pattern, treating as never matching").Len())
}

func TestStatsAndResetCaches(t *testing.T) {
	e := newBuiltinEngine(t)

	_, err := e.Detect("App.vue", appVue, DefaultBudget())
	require.NoError(t, err)

	s := e.Stats()
	assert.True(t, s.Index.Initialized)
	assert.Positive(t, s.Executor.CachedRegexes)

	e.ResetCaches()
	s = e.Stats()
	assert.Zero(t, s.Executor.CachedRegexes)
	assert.True(t, s.Index.Initialized, "rule index survives a cache reset")
}

func TestFrameworkRules(t *testing.T) {
	e := newBuiltinEngine(t)

	vue, err := e.FrameworkRules("vue")
	require.NoError(t, err)
	all, err := e.Rules()
	require.NoError(t, err)
	assert.NotEmpty(t, vue)
	assert.LessOrEqual(t, len(vue), len(all))
}

func TestClose_Restartable(t *testing.T) {
	e := newBuiltinEngine(t, WithParallel(), WithPoolSize(2))

	_, err := e.Detect("App.vue", appVue, DefaultBudget())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.False(t, e.Stats().Pool.Initialized)

	_, err = e.Detect("App.vue", appVue, DefaultBudget())
	require.NoError(t, err)
	assert.True(t, e.Stats().Pool.Initialized)
}

func TestSequentialDetect(t *testing.T) {
	e := newBuiltinEngine(t)

	var first []Finding
	for i := 0; i < 5; i++ {
		findings, err := e.Detect("App.vue", appVue, DefaultBudget())
		require.NoError(t, err, "detect %d should succeed", i)
		if i == 0 {
			first = withoutIDs(findings)
			continue
		}
		assert.Equal(t, first, withoutIDs(findings), "detect %d should be deterministic", i)
	}
}

func TestMultipleEngines(t *testing.T) {
	// Each engine is independent; use one per goroutine for concurrency.
	done := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		go func() {
			defer func() { done <- true }()
			e := NewEngine()
			defer e.Close()

			rules, err := LoadBuiltinRules()
			if !assert.NoError(t, err) {
				return
			}
			if !assert.NoError(t, e.Initialize(rules)) {
				return
			}
			_, err = e.Detect("App.vue", appVue, DefaultBudget())
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
}
