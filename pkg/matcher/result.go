package matcher

import "github.com/praetorian-inc/vuescan/pkg/prefilter"

// Stats are cumulative counters for one Executor since creation or Reset.
type Stats struct {
	RulesSelected   int `json:"rulesSelected"`   // rules admitted by the budget
	PatternsChecked int `json:"patternsChecked"` // patterns run through the prefilter
	PatternsPassed  int `json:"patternsPassed"`  // patterns the prefilter let through
	Compilations    int `json:"compilations"`    // regex cache misses
	CompileErrors   int `json:"compileErrors"`   // patterns replaced by a never-matching regex
	Executions      int `json:"executions"`      // full regex runs
	Timeouts        int `json:"timeouts"`        // runs that hit the match timeout
	Matches         int `json:"matches"`         // raw regex matches
	Findings        int `json:"findings"`        // findings returned
	CachedRegexes   int `json:"cachedRegexes"`

	Prefilter prefilter.Stats `json:"prefilter"`
}

// Add returns the field-wise sum of s and o. Cache sizes are summed too,
// which for a pool reads as the total held across workers.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		RulesSelected:   s.RulesSelected + o.RulesSelected,
		PatternsChecked: s.PatternsChecked + o.PatternsChecked,
		PatternsPassed:  s.PatternsPassed + o.PatternsPassed,
		Compilations:    s.Compilations + o.Compilations,
		CompileErrors:   s.CompileErrors + o.CompileErrors,
		Executions:      s.Executions + o.Executions,
		Timeouts:        s.Timeouts + o.Timeouts,
		Matches:         s.Matches + o.Matches,
		Findings:        s.Findings + o.Findings,
		CachedRegexes:   s.CachedRegexes + o.CachedRegexes,
		Prefilter: prefilter.Stats{
			TokenCacheSize:      s.Prefilter.TokenCacheSize + o.Prefilter.TokenCacheSize,
			ComplexityCacheSize: s.Prefilter.ComplexityCacheSize + o.Prefilter.ComplexityCacheSize,
			AutomatonCacheSize:  s.Prefilter.AutomatonCacheSize + o.Prefilter.AutomatonCacheSize,
			Checked:             s.Prefilter.Checked + o.Prefilter.Checked,
			Passed:              s.Prefilter.Passed + o.Prefilter.Passed,
		},
	}
}
