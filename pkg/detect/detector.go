// Package detect implements per-message vulnerability detection: scanning a
// message against the indicator catalog and deriving a protection level from
// the trigger count. Detection is pure; all conversation state lives in the
// conversation package.
package detect

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/guardline-ai/guardline/pkg/catalog"
)

// ProtectionLevel is the graded response level derived from trigger count.
type ProtectionLevel int

const (
	LevelStandard ProtectionLevel = 1 // 0 triggers
	LevelEnhanced ProtectionLevel = 2 // 1-2 triggers
	LevelCrisis   ProtectionLevel = 3 // 3+ triggers
)

// String returns the level name for logging and wire formats.
func (l ProtectionLevel) String() string {
	switch l {
	case LevelStandard:
		return "STANDARD"
	case LevelEnhanced:
		return "ENHANCED"
	case LevelCrisis:
		return "CRISIS"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the level by name so API payloads and stored session
// state read the same way as logs.
func (l ProtectionLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts a level name (case-insensitive) or the numeric form.
func (l *ProtectionLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch strings.ToUpper(name) {
		case "STANDARD":
			*l = LevelStandard
		case "ENHANCED":
			*l = LevelEnhanced
		case "CRISIS":
			*l = LevelCrisis
		default:
			return fmt.Errorf("detect: unknown protection level %q", name)
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("detect: invalid protection level %s", data)
	}
	*l = ProtectionLevel(n)
	return nil
}

// LevelForCount maps a trigger count to a protection level.
// The thresholds are fixed protocol constants, never category-derived.
func LevelForCount(count int) ProtectionLevel {
	switch {
	case count >= 3:
		return LevelCrisis
	case count >= 1:
		return LevelEnhanced
	default:
		return LevelStandard
	}
}

// Trigger records one matched indicator within a message.
type Trigger struct {
	Category catalog.Category `json:"category"`
	Pattern  string           `json:"pattern"`
	Weight   int              `json:"weight"`
}

// DetectionResult is the immutable outcome of classifying one message.
type DetectionResult struct {
	// TriggerCount is the sum of weights of all distinct matched indicators.
	TriggerCount int `json:"trigger_count"`

	// Categories had at least one match. Non-empty iff TriggerCount > 0.
	Categories []catalog.Category `json:"categories,omitempty"`

	// Triggers lists every distinct (category, pattern) match in catalog order.
	Triggers []Trigger `json:"triggers,omitempty"`

	// Level is derived from TriggerCount alone.
	Level ProtectionLevel `json:"level"`
}

// IsVulnerable reports whether the message warrants elevated protection.
func (r *DetectionResult) IsVulnerable() bool { return r.Level >= LevelEnhanced }

// IsCrisis reports whether the message alone reaches Crisis level.
func (r *DetectionResult) IsCrisis() bool { return r.Level == LevelCrisis }

// HasCategory reports whether the given category had a match.
func (r *DetectionResult) HasCategory(cat catalog.Category) bool {
	for _, c := range r.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Detector scans messages against an injected catalog.
// Safe for concurrent use; holds no per-message state.
type Detector struct {
	catalog *catalog.Catalog
}

// NewDetector creates a detector over the given catalog.
// A nil catalog falls back to the built-in default.
func NewDetector(c *catalog.Catalog) *Detector {
	if c == nil {
		c = catalog.Default()
	}
	return &Detector{catalog: c}
}

// Match scans one message and returns every distinct matched indicator.
// Matching is case-insensitive substring search over case-folded text:
// one fold of the message, then one Contains per indicator, so the cost is
// linear in message length times catalog size with no regex backtracking.
// The same (category, pattern) pair is reported at most once per message
// even when the phrase occurs repeatedly.
func (d *Detector) Match(text string) []Trigger {
	if text == "" || d.catalog.TotalIndicators() == 0 {
		return nil
	}

	folded := cases.Fold().String(text)

	type matchKey struct {
		cat     catalog.Category
		pattern string
	}
	seen := make(map[matchKey]struct{})

	var triggers []Trigger
	for _, ind := range d.catalog.All() {
		if !strings.Contains(folded, ind.Folded()) {
			continue
		}
		key := matchKey{ind.Category, ind.Pattern}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		triggers = append(triggers, Trigger{
			Category: ind.Category,
			Pattern:  ind.Pattern,
			Weight:   ind.Weight,
		})
	}
	return triggers
}

// Classify converts matched triggers into a DetectionResult.
func Classify(triggers []Trigger) *DetectionResult {
	result := &DetectionResult{Triggers: triggers}

	seenCat := make(map[catalog.Category]struct{})
	for _, t := range triggers {
		result.TriggerCount += t.Weight
		if _, ok := seenCat[t.Category]; !ok {
			seenCat[t.Category] = struct{}{}
			result.Categories = append(result.Categories, t.Category)
		}
	}
	result.Level = LevelForCount(result.TriggerCount)
	return result
}

// Detect is the pure composition of Match and Classify.
// Any string is valid input; empty or adversarial text yields a
// zero-trigger Standard result rather than an error.
func (d *Detector) Detect(text string) *DetectionResult {
	return Classify(d.Match(text))
}
