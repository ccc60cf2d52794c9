package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/vuescan/pkg/metrics"
	"github.com/praetorian-inc/vuescan/pkg/prefilter"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// regexCache compiles pattern specs on first use and keeps them for the
// executor's lifetime. A nil entry is a pattern that failed to compile and
// never matches.
type regexCache struct {
	entries  map[string]*regexp2.Regexp
	timeout  time.Duration
	optimize bool
	logger   *zap.Logger
	metrics  *metrics.Metrics

	compilations  int
	compileErrors int
}

func newRegexCache(timeout time.Duration, optimize bool, logger *zap.Logger, m *metrics.Metrics) *regexCache {
	return &regexCache{
		entries:  make(map[string]*regexp2.Regexp),
		timeout:  timeout,
		optimize: optimize,
		logger:   logger,
		metrics:  m,
	}
}

// cacheKey is the pattern key qualified by its source and flags, so two rules
// that reuse a key never share a compiled regex.
func cacheKey(spec types.PatternSpec) string {
	return spec.Key + "\x00" + spec.EffectiveFlags() + "\x00" + spec.Pattern
}

// get returns the compiled regex for spec, compiling it on a miss.
// It returns nil for an invalid pattern.
func (c *regexCache) get(spec types.PatternSpec) *regexp2.Regexp {
	key := cacheKey(spec)
	if re, ok := c.entries[key]; ok {
		return re
	}

	re, err := c.compile(spec)
	c.compilations++
	c.metrics.RecordCompilation(err == nil)
	if err != nil {
		c.compileErrors++
		c.logger.Warn("invalid pattern, treating as never matching",
			zap.String("key", spec.Key),
			zap.String("pattern", spec.Pattern),
			zap.Error(err))
	}
	c.entries[key] = re
	return re
}

func (c *regexCache) compile(spec types.PatternSpec) (*regexp2.Regexp, error) {
	opts := regexOptions(spec.EffectiveFlags())

	var re *regexp2.Regexp
	var err error
	if c.optimize {
		// rewrites are only equivalent under ECMAScript semantics
		optimized := prefilter.OptimizePattern(spec.Pattern, prefilter.OptimizeOptions{})
		re, err = regexp2.Compile(optimized, regexp2.ECMAScript|opts)
	}
	if re == nil {
		// Rule sources are JavaScript regexes; ECMAScript mode first
		re, err = regexp2.Compile(spec.Pattern, regexp2.ECMAScript|opts)
	}
	if err != nil {
		// Fallback to default mode for constructs ECMAScript mode rejects
		re, err = regexp2.Compile(spec.Pattern, opts)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", spec.Key, err)
		}
	}
	re.MatchTimeout = c.timeout
	return re, nil
}

// regexOptions maps JavaScript flag letters to regexp2 options.
// g, u and y are accepted and ignored: matching is always global.
func regexOptions(flags string) regexp2.RegexOptions {
	var opts regexp2.RegexOptions
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		}
	}
	return opts
}

func isTimeout(err error) bool {
	return strings.Contains(err.Error(), "match timeout")
}

func (c *regexCache) size() int {
	return len(c.entries)
}

func (c *regexCache) reset() {
	clear(c.entries)
	c.compilations = 0
	c.compileErrors = 0
}
