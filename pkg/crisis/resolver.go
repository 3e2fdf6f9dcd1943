// Package crisis resolves the dominant crisis type for a Crisis-level
// detection and assembles the resource bundle and recommended actions the
// calling AI system must surface. Resource selection is a fixed,
// non-configurable policy: under-triaging a mental-health crisis is the
// highest-cost failure mode, so mental-health signals always dominate.
package crisis

import (
	"strings"

	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/detect"
)

// Type identifies the dominant crisis category used for resource selection.
type Type string

const (
	TypeMentalHealth Type = "mental_health"
	TypeFinancial    Type = "financial"
	TypeHealth       Type = "health"
	TypeAbuse        Type = "abuse"
	TypeUnspecified  Type = "unspecified"
	TypeNone         Type = "none"
)

// Assessment is the immutable crisis response bundle for one detection.
type Assessment struct {
	Detected           bool               `json:"detected"`
	CrisisType         Type               `json:"crisis_type"`
	Resources          []catalog.Resource `json:"resources,omitempty"`
	RecommendedActions []string           `json:"recommended_actions,omitempty"`
}

// abuseHints mark matched indicator phrases that signal domestic violence
// or abuse. The category enum has no abuse category, so abuse is recognized
// from the matched text itself.
var abuseHints = []string{
	"afraid of my partner",
	"afraid to go home",
	"hurting me",
	"hits me",
	"threatens me",
}

// severeTriggerCount is the count at which a non-mental-health crisis also
// receives the primary mental-health resource.
const severeTriggerCount = 4

// Resolver assembles assessments from an injected catalog.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver creates a resolver over the given catalog.
// A nil catalog falls back to the built-in default.
func NewResolver(c *catalog.Catalog) *Resolver {
	if c == nil {
		c = catalog.Default()
	}
	return &Resolver{catalog: c}
}

// Resolve assesses a detection result. Called only when the caller has a
// Crisis-level result; a sub-Crisis result yields a non-detected assessment
// so callers cannot accidentally surface crisis resources off-policy.
func (r *Resolver) Resolve(result *detect.DetectionResult) *Assessment {
	if result == nil || !result.IsCrisis() {
		return &Assessment{Detected: false, CrisisType: TypeNone}
	}

	crisisType := resolveType(result)

	resources := append([]catalog.Resource{}, r.catalog.ResourcesFor(string(crisisType))...)
	actions := r.catalog.ActionsFor(string(crisisType))

	// A crisis message must never go out resource-free. Types without a
	// bundle of their own (unspecified) fall back to the general
	// mental-health resources and actions.
	if len(resources) == 0 {
		resources = append(resources, r.catalog.ResourcesFor(string(TypeMentalHealth))...)
	}
	if len(actions) == 0 {
		actions = r.catalog.ActionsFor(string(TypeMentalHealth))
	}

	// Severe non-mental-health crises also get the primary mental-health
	// resource: high trigger counts usually mean compounding distress.
	if crisisType != TypeMentalHealth && result.TriggerCount >= severeTriggerCount {
		if mh := r.catalog.ResourcesFor(string(TypeMentalHealth)); len(mh) > 0 && !containsResource(resources, mh[0]) {
			resources = append(resources, mh[0])
		}
	}

	return &Assessment{
		Detected:           true,
		CrisisType:         crisisType,
		Resources:          resources,
		RecommendedActions: actions,
	}
}

// resolveType applies the fixed priority order:
// MentalHealth > Health > Abuse > Financial > Unspecified.
func resolveType(result *detect.DetectionResult) Type {
	if result.HasCategory(catalog.CategoryCrisisLanguage) {
		return TypeMentalHealth
	}
	if result.HasCategory(catalog.CategoryHealthCrisis) {
		return TypeHealth
	}
	if hasAbuseSignal(result) {
		return TypeAbuse
	}
	if result.HasCategory(catalog.CategoryFinancialDesperation) {
		return TypeFinancial
	}
	return TypeUnspecified
}

func containsResource(resources []catalog.Resource, r catalog.Resource) bool {
	for _, have := range resources {
		if have.Contact == r.Contact {
			return true
		}
	}
	return false
}

func hasAbuseSignal(result *detect.DetectionResult) bool {
	for _, t := range result.Triggers {
		lower := strings.ToLower(t.Pattern)
		for _, hint := range abuseHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	return false
}
