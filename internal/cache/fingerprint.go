// Package cache implements fingerprinted memoization for prediction results:
// a deterministic cache key, a keyed store abstraction (in-memory, or the
// Postgres-backed implementation in internal/db), and a coalescing manager
// that guarantees at most one in-flight computation per fingerprint.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"climarisk/internal/types"
)

// fingerprintVersion is bumped whenever the canonical key layout changes, so
// stale persisted entries from an older layout can never collide with new
// ones.
const fingerprintVersion = "v1"

// Key identifies one logical query. Identical logical queries must always
// produce identical fingerprints, so every field is canonicalized before
// hashing: coordinates snapped to the grid, dates reduced to calendar days,
// threshold overrides sorted by category.
type Key struct {
	Location   types.Location
	Date       time.Time
	EndDate    time.Time          // zero for single-day queries
	Activity   string             // canonical profile id, not the user-facing label
	Thresholds types.ThresholdSet // nil when the defaults apply
}

// Fingerprint returns the deterministic hex digest for the key.
func (k Key) Fingerprint() string {
	loc := k.Location.Rounded()

	var b strings.Builder
	b.WriteString(fingerprintVersion)
	fmt.Fprintf(&b, "|%.*f|%.*f", types.GridPrecision, loc.Lat, types.GridPrecision, loc.Lon)
	fmt.Fprintf(&b, "|%s", k.Date.Format("2006-01-02"))
	if !k.EndDate.IsZero() {
		fmt.Fprintf(&b, ":%s", k.EndDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "|%s", k.Activity)

	if len(k.Thresholds) == 0 {
		b.WriteString("|default")
	} else {
		b.WriteString("|custom")
		cats := make([]string, 0, len(k.Thresholds))
		for cat := range k.Thresholds {
			cats = append(cats, string(cat))
		}
		sort.Strings(cats)
		for _, cat := range cats {
			th := k.Thresholds[types.ConditionCategory(cat)]
			fmt.Fprintf(&b, ";%s=%g%s", cat, th.Value, th.Operator)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
