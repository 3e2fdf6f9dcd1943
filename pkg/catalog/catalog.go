// Package catalog provides the vulnerability indicator catalog used by
// detection and crisis resolution. All indicators are registered once at
// package init (or loaded once from a catalog file) and are immutable
// afterwards.
//
// Design principles:
// - FOLD ONCE: Indicator patterns are case-folded at registration, not per-message
// - DRY: Single source of truth for indicators, crisis resources, and actions
// - CATEGORIZED: Indicators organized by vulnerability category
// - INJECTABLE: Callers receive a *Catalog; nothing reads ambient globals
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/cases"
)

// Category identifies a vulnerability indicator category.
type Category string

const (
	CategoryCrisisLanguage       Category = "crisis_language"
	CategoryFinancialDesperation Category = "financial_desperation"
	CategoryHealthCrisis         Category = "health_crisis"
	CategoryIsolation            Category = "isolation"
)

// Categories returns all valid categories in registration order.
func Categories() []Category {
	return []Category{
		CategoryCrisisLanguage,
		CategoryFinancialDesperation,
		CategoryHealthCrisis,
		CategoryIsolation,
	}
}

// Valid reports whether the category is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCrisisLanguage, CategoryFinancialDesperation,
		CategoryHealthCrisis, CategoryIsolation:
		return true
	}
	return false
}

// Indicator is a single literal phrase that signals vulnerability.
// Matching is case-insensitive substring matching against folded text.
type Indicator struct {
	Category Category // Owning category
	Pattern  string   // Literal phrase as authored
	Weight   int      // Trigger weight (default 1)

	folded string // Case-folded pattern, computed at registration
}

// Folded returns the case-folded form of the pattern used for matching.
func (i *Indicator) Folded() string { return i.folded }

// Resource is a crisis support resource with contact information.
type Resource struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Contact      string `yaml:"contact"`
	Availability string `yaml:"availability"`
}

// ErrEmptyCatalog is returned when a catalog has no indicators at all.
// An engine must refuse to classify with such a catalog rather than
// silently matching nothing.
var ErrEmptyCatalog = errors.New("catalog: no indicators registered")

// fold performs Unicode case folding so non-ASCII input matches correctly.
// A cases.Caser is not safe for concurrent use, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Catalog holds all indicators, crisis resources, and recommended actions.
// Immutable after construction; safe for concurrent readers.
type Catalog struct {
	byCategory map[Category][]*Indicator
	all        []*Indicator

	// Crisis resources and recommended actions, keyed by crisis type name
	// (e.g. "mental_health"). The crisis package owns the type enum.
	resources map[string][]Resource
	actions   map[string][]string
}

// global default - initialized once at first use
var (
	defaultCatalog *Catalog
	initOnce       sync.Once
)

// Default returns the built-in catalog (singleton).
// Thread-safe and guaranteed to be initialized and valid.
func Default() *Catalog {
	initOnce.Do(func() {
		defaultCatalog = newDefaultCatalog()
	})
	return defaultCatalog
}

func newCatalog() *Catalog {
	return &Catalog{
		byCategory: make(map[Category][]*Indicator),
		all:        make([]*Indicator, 0, 64),
		resources:  make(map[string][]Resource),
		actions:    make(map[string][]string),
	}
}

func newDefaultCatalog() *Catalog {
	c := newCatalog()
	c.registerCrisisLanguageIndicators()
	c.registerFinancialDesperationIndicators()
	c.registerHealthCrisisIndicators()
	c.registerIsolationIndicators()
	c.registerDefaultResources()
	c.registerDefaultActions()
	return c
}

// register adds an indicator (internal use only).
func (c *Catalog) register(cat Category, pattern string, weight int) {
	if weight <= 0 {
		weight = 1
	}
	ind := &Indicator{
		Category: cat,
		Pattern:  pattern,
		Weight:   weight,
		folded:   fold(pattern),
	}
	c.byCategory[cat] = append(c.byCategory[cat], ind)
	c.all = append(c.all, ind)
}

// IndicatorsFor returns all indicators for a category.
// Returns an empty slice if the category has none (never nil).
func (c *Catalog) IndicatorsFor(cat Category) []*Indicator {
	if inds, ok := c.byCategory[cat]; ok {
		return inds
	}
	return []*Indicator{}
}

// All returns every registered indicator in registration order.
func (c *Catalog) All() []*Indicator {
	return c.all
}

// TotalIndicators returns the count of registered indicators.
func (c *Catalog) TotalIndicators() int {
	return len(c.all)
}

// CategoryCount returns the number of indicators in a category.
func (c *Catalog) CategoryCount(cat Category) int {
	return len(c.byCategory[cat])
}

// ResourcesFor returns the resource bundle for a crisis type name.
// Returns an empty slice if none are registered (never nil).
func (c *Catalog) ResourcesFor(crisisType string) []Resource {
	if rs, ok := c.resources[crisisType]; ok {
		return rs
	}
	return []Resource{}
}

// ActionsFor returns the recommended actions for a crisis type name.
func (c *Catalog) ActionsFor(crisisType string) []string {
	if as, ok := c.actions[crisisType]; ok {
		return as
	}
	return []string{}
}

// Validate checks the catalog is usable for classification.
// A catalog with zero indicators is invalid: it would classify every
// message as Standard, which fails toward danger instead of safety.
func (c *Catalog) Validate() error {
	if len(c.all) == 0 {
		return ErrEmptyCatalog
	}
	for cat, inds := range c.byCategory {
		if !cat.Valid() {
			return fmt.Errorf("catalog: unknown category %q", cat)
		}
		for _, ind := range inds {
			if ind.Pattern == "" {
				return fmt.Errorf("catalog: empty pattern in category %q", cat)
			}
			if ind.Weight <= 0 {
				return fmt.Errorf("catalog: non-positive weight %d for %q in category %q",
					ind.Weight, ind.Pattern, cat)
			}
		}
	}
	return nil
}
