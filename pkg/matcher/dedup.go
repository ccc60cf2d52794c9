package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// Deduplicator drops findings already reported for the same rule, line and
// matched text.
type Deduplicator struct {
	seen map[string]bool
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]bool)}
}

// IsDuplicate returns true if an equivalent finding was already added.
func (d *Deduplicator) IsDuplicate(f *types.Finding, matched string) bool {
	return d.seen[d.computeKey(f, matched)]
}

// Add marks a finding as seen.
func (d *Deduplicator) Add(f *types.Finding, matched string) {
	d.seen[d.computeKey(f, matched)] = true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

// computeKey hashes rule + file + line + full matched text. The snippet is
// not used because it is truncated.
func (d *Deduplicator) computeKey(f *types.Finding, matched string) string {
	h := sha256.New()
	h.Write([]byte(f.RuleID))
	h.Write([]byte{0})
	h.Write([]byte(f.File))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(f.Line)))
	h.Write([]byte{0})
	h.Write([]byte(matched))
	return hex.EncodeToString(h.Sum(nil))
}
