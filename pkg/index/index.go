// Package index turns a flat rule list into per-extension and per-framework
// lookup tables ordered by rule priority.
package index

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by queries made before Initialize succeeds.
var ErrNotInitialized = errors.New("rule index not initialized")

// Index maps file extensions and frameworks to priority-ordered rules.
// Once initialized it is read-only and safe for concurrent readers.
type Index struct {
	mu          sync.RWMutex
	initialized bool
	logger      *zap.Logger

	rules     []*types.Rule
	priority  map[string]int
	byExt     map[string][]*types.Rule // extension bucket merged with default, sorted
	byFw      map[string][]*types.Rule // framework bucket merged with default, sorted
	extSizes  map[string]int
	fwSizes   map[string]int
	conflicts []Conflict
}

// New creates an empty, uninitialized index.
func New(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{logger: logger.Named("index")}
}

// Initialize builds the lookup tables. Calling it again on an initialized
// index is a no-op, even with different rules; call Reset first to rebuild.
func (ix *Index) Initialize(rules []*types.Rule) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.initialized {
		ix.logger.Debug("already initialized, ignoring", zap.Int("rules", len(rules)))
		return nil
	}

	for i, r := range rules {
		if r == nil {
			return fmt.Errorf("rule %d is nil", i)
		}
	}

	ordered := make([]*types.Rule, len(rules))
	copy(ordered, rules)

	order := make(map[*types.Rule]int, len(ordered))
	priority := make(map[string]int, len(ordered))
	targets := make([]Targets, len(ordered))
	extBuckets := make(map[string][]*types.Rule)
	fwBuckets := make(map[string][]*types.Rule)

	for i, r := range ordered {
		order[r] = i
		priority[r.ID] = Priority(r)
		targets[i] = Categorize(r)
		for _, ext := range targets[i].Extensions {
			extBuckets[ext] = append(extBuckets[ext], r)
		}
		for _, fw := range targets[i].Frameworks {
			fwBuckets[fw] = append(fwBuckets[fw], r)
		}
	}

	less := func(list []*types.Rule) func(i, j int) bool {
		return func(i, j int) bool {
			pi, pj := Priority(list[i]), Priority(list[j])
			if pi != pj {
				return pi > pj
			}
			return order[list[i]] < order[list[j]]
		}
	}
	merge := func(buckets map[string][]*types.Rule, name string) []*types.Rule {
		var list []*types.Rule
		if name != DefaultBucket {
			list = append(list, buckets[name]...)
		}
		list = append(list, buckets[DefaultBucket]...)
		sort.SliceStable(list, less(list))
		return list
	}

	ix.byExt = make(map[string][]*types.Rule, len(Extensions)+1)
	ix.extSizes = make(map[string]int, len(Extensions)+1)
	for _, ext := range append([]string{DefaultBucket}, Extensions...) {
		ix.byExt[ext] = merge(extBuckets, ext)
		ix.extSizes[ext] = len(extBuckets[ext])
	}
	ix.byFw = make(map[string][]*types.Rule, len(Frameworks)+1)
	ix.fwSizes = make(map[string]int, len(Frameworks)+1)
	for _, fw := range append([]string{DefaultBucket}, Frameworks...) {
		ix.byFw[fw] = merge(fwBuckets, fw)
		ix.fwSizes[fw] = len(fwBuckets[fw])
	}

	ix.rules = ordered
	ix.priority = priority
	ix.conflicts = detectConflicts(ordered, targets)
	ix.initialized = true

	ix.logger.Debug("rule index initialized",
		zap.Int("rules", len(ordered)),
		zap.Int("default_rules", ix.extSizes[DefaultBucket]),
		zap.Int("conflicts", len(ix.conflicts)))
	for _, c := range ix.conflicts {
		ix.logger.Debug("rule conflict",
			zap.String("rule_a", c.RuleA),
			zap.String("rule_b", c.RuleB),
			zap.String("reason", c.Reason))
	}
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (ix *Index) Initialized() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.initialized
}

// ApplicableRules returns the rules for filePath's extension followed by the
// default bucket, ordered by descending priority and then declaration order.
// The returned slice is a copy and may be modified by the caller.
func (ix *Index) ApplicableRules(filePath string) ([]*types.Rule, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return nil, ErrNotInitialized
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	list, ok := ix.byExt[ext]
	if !ok {
		list = ix.byExt[DefaultBucket]
	}
	return cloneRules(list), nil
}

// FrameworkRules returns the rules for a framework followed by the default
// bucket, in the same order as ApplicableRules.
func (ix *Index) FrameworkRules(framework string) ([]*types.Rule, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return nil, ErrNotInitialized
	}

	list, ok := ix.byFw[strings.ToLower(framework)]
	if !ok {
		list = ix.byFw[DefaultBucket]
	}
	return cloneRules(list), nil
}

// Priority returns the computed priority of a rule id.
func (ix *Index) Priority(ruleID string) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return 0, ErrNotInitialized
	}
	p, ok := ix.priority[ruleID]
	if !ok {
		return 0, fmt.Errorf("unknown rule %q", ruleID)
	}
	return p, nil
}

// Rules returns the initialized rules in declaration order.
func (ix *Index) Rules() ([]*types.Rule, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return nil, ErrNotInitialized
	}
	return cloneRules(ix.rules), nil
}

// Conflicts returns near-duplicate or inconsistent rule pairs found at
// initialization.
func (ix *Index) Conflicts() ([]Conflict, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]Conflict, len(ix.conflicts))
	copy(out, ix.conflicts)
	return out, nil
}

// Stats describes bucket sizes, excluding the default rules merged into each.
type Stats struct {
	Initialized bool           `json:"initialized"`
	Rules       int            `json:"rules"`
	Extensions  map[string]int `json:"fileTypes,omitempty"`
	Frameworks  map[string]int `json:"frameworks,omitempty"`
	Conflicts   int            `json:"conflicts"`
}

// Stats reports bucket sizes. It does not fail on an uninitialized index.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return Stats{}
	}
	s := Stats{
		Initialized: true,
		Rules:       len(ix.rules),
		Extensions:  make(map[string]int, len(ix.extSizes)),
		Frameworks:  make(map[string]int, len(ix.fwSizes)),
		Conflicts:   len(ix.conflicts),
	}
	for k, v := range ix.extSizes {
		s.Extensions[k] = v
	}
	for k, v := range ix.fwSizes {
		s.Frameworks[k] = v
	}
	return s
}

// Reset returns the index to the uninitialized state.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.initialized = false
	ix.rules = nil
	ix.priority = nil
	ix.byExt = nil
	ix.byFw = nil
	ix.extSizes = nil
	ix.fwSizes = nil
	ix.conflicts = nil
}

func cloneRules(list []*types.Rule) []*types.Rule {
	out := make([]*types.Rule, len(list))
	copy(out, list)
	return out
}
