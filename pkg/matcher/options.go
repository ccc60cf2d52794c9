package matcher

import (
	"time"

	"github.com/praetorian-inc/vuescan/pkg/metrics"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// DefaultRegexTimeout bounds a single regex execution.
const DefaultRegexTimeout = 5 * time.Second

// Options configures an Executor.
type Options struct {
	// RegexTimeout is the regexp2 MatchTimeout applied to every compiled pattern.
	// A pattern that times out contributes the findings found so far and stops.
	// Default: 5 seconds
	RegexTimeout time.Duration

	// OptimizePatterns rewrites pattern sources with prefilter.OptimizePattern
	// before compiling them.
	OptimizePatterns bool

	// Dedupe drops repeated findings with the same rule, line and matched text.
	Dedupe bool

	// MinConfidence drops findings below this confidence. Empty keeps all.
	MinConfidence types.Confidence

	// Suppressions are pattern sources, file basenames or "basename:line"
	// entries whose findings are dropped.
	Suppressions []string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns the default options for an Executor.
func DefaultOptions() Options {
	return Options{
		RegexTimeout: DefaultRegexTimeout,
	}
}
