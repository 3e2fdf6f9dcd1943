package verify

import (
	"strings"
	"testing"

	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/crisis"
	"github.com/guardline-ai/guardline/pkg/detect"
)

func hasVR(violations []Violation, vr VR) bool {
	for _, v := range violations {
		if v.VR == vr {
			return true
		}
	}
	return false
}

// crisisResponse builds a response carrying every contact of the given
// crisis type's bundle, as a verified crisis response must.
func crisisResponse(t *testing.T, crisisType crisis.Type, prefix string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(prefix)
	for _, res := range catalog.Default().ResourcesFor(string(crisisType)) {
		b.WriteString("\n")
		b.WriteString(res.Contact)
	}
	return b.String()
}

func TestVerifyCleanResponse(t *testing.T) {
	v := NewVerifier(nil)
	violations := v.Verify(
		"Losing a job is really hard. Would it help to talk through what happened?",
		detect.LevelEnhanced, crisis.TypeNone, false)
	if len(violations) != 0 {
		t.Errorf("clean response flagged: %+v", violations)
	}
}

func TestOptimismCheck(t *testing.T) {
	v := NewVerifier(nil)

	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"guaranteed success", "This plan is guaranteed success!", true},
		{"risk-free claim", "It's completely risk-free.", true},
		{"easy money", "This is easy money.", true},
		{"measured tone", "This could work, though outcomes vary a lot.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Verify(tt.response, detect.LevelStandard, crisis.TypeNone, false)
			if got := hasVR(violations, VR20); got != tt.want {
				t.Errorf("VR-20 = %v, want %v (%+v)", got, tt.want, violations)
			}
		})
	}
}

func TestOptimismAppliesAtEveryLevel(t *testing.T) {
	v := NewVerifier(nil)
	for _, level := range []detect.ProtectionLevel{detect.LevelStandard, detect.LevelEnhanced, detect.LevelCrisis} {
		violations := v.Verify("guaranteed success", level, crisis.TypeMentalHealth, false)
		if !hasVR(violations, VR20) {
			t.Errorf("VR-20 not flagged at level %v", level)
		}
	}
}

func TestCapabilityCheck(t *testing.T) {
	v := NewVerifier(nil)

	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"jobs of N people", "With this tool you'll be doing the jobs of 5 people.", true},
		{"digit-first form", "You could handle 3 people's jobs easily.", true},
		{"superlative", "You're a genius, this will be amazing.", true},
		{"grounded praise", "You clearly put a lot of thought into this draft.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Verify(tt.response, detect.LevelStandard, crisis.TypeNone, false)
			if got := hasVR(violations, VR22); got != tt.want {
				t.Errorf("VR-22 = %v, want %v (%+v)", got, tt.want, violations)
			}
		})
	}
}

func TestFinancialRealismCheck(t *testing.T) {
	v := NewVerifier(nil)

	tests := []struct {
		name     string
		response string
		level    detect.ProtectionLevel
		want     bool
	}{
		{
			name:     "financial action without disclosure",
			response: "You should invest your savings in this startup.",
			level:    detect.LevelEnhanced,
			want:     true,
		},
		{
			name:     "financial action with disclosure",
			response: "You could invest, but any venture involves risk and there is no guarantee of return.",
			level:    detect.LevelEnhanced,
			want:     false,
		},
		{
			name:     "no financial content",
			response: "Taking a walk might help clear your head.",
			level:    detect.LevelEnhanced,
			want:     false,
		},
		{
			name:     "standard level skips the check",
			response: "You should invest your savings in this startup.",
			level:    detect.LevelStandard,
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Verify(tt.response, tt.level, crisis.TypeNone, false)
			if got := hasVR(violations, VR23); got != tt.want {
				t.Errorf("VR-23 = %v, want %v (%+v)", got, tt.want, violations)
			}
		})
	}
}

func TestCrisisResourceCheck(t *testing.T) {
	v := NewVerifier(nil)

	t.Run("missing resources blocks", func(t *testing.T) {
		violations := v.Verify("I hear you. Things will look brighter tomorrow.",
			detect.LevelCrisis, crisis.TypeMentalHealth, false)
		if !hasVR(violations, VR24) {
			t.Fatalf("VR-24 not flagged: %+v", violations)
		}
		if !HasBlocking(violations) {
			t.Error("VR-24 at Crisis is not blocking")
		}
	})

	t.Run("complete bundle passes", func(t *testing.T) {
		response := crisisResponse(t, crisis.TypeMentalHealth, "Please reach out for support:")
		violations := v.Verify(response, detect.LevelCrisis, crisis.TypeMentalHealth, false)
		if hasVR(violations, VR24) {
			t.Errorf("complete bundle still flagged: %+v", violations)
		}
	})

	t.Run("partial bundle blocks", func(t *testing.T) {
		// Only the first mental-health contact, missing the rest.
		first := catalog.Default().ResourcesFor("mental_health")[0]
		violations := v.Verify("You can call: "+first.Contact,
			detect.LevelCrisis, crisis.TypeMentalHealth, false)
		if !hasVR(violations, VR24) {
			t.Errorf("partial bundle not flagged: %+v", violations)
		}
	})

	t.Run("unspecified falls back to mental health bundle", func(t *testing.T) {
		violations := v.Verify("Stay strong.", detect.LevelCrisis, crisis.TypeUnspecified, false)
		if !hasVR(violations, VR24) {
			t.Errorf("unspecified crisis not checked: %+v", violations)
		}
		response := crisisResponse(t, crisis.TypeMentalHealth, "Support is available:")
		if violations := v.Verify(response, detect.LevelCrisis, crisis.TypeUnspecified, false); hasVR(violations, VR24) {
			t.Errorf("mental health bundle rejected for unspecified crisis: %+v", violations)
		}
	})

	t.Run("sub-crisis levels skip the check", func(t *testing.T) {
		violations := v.Verify("Hang in there.", detect.LevelEnhanced, crisis.TypeMentalHealth, false)
		if hasVR(violations, VR24) {
			t.Errorf("VR-24 applied below Crisis: %+v", violations)
		}
	})
}

func TestAmplificationCheck(t *testing.T) {
	v := NewVerifier(nil)

	tests := []struct {
		name     string
		response string
		risk     bool
		want     bool
	}{
		{
			name:     "affirmation under risk",
			response: "That's a great idea, go for it.",
			risk:     true,
			want:     true,
		},
		{
			name:     "affirmation with clarifying question",
			response: "That's a great idea. What would the first month look like financially?",
			risk:     true,
			want:     false,
		},
		{
			name:     "affirmation without risk",
			response: "That's a great idea, go for it.",
			risk:     false,
			want:     false,
		},
		{
			name:     "neutral response under risk",
			response: "Here are some factors worth weighing first.",
			risk:     true,
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Verify(tt.response, detect.LevelEnhanced, crisis.TypeNone, tt.risk)
			if got := hasVR(violations, VR25); got != tt.want {
				t.Errorf("VR-25 = %v, want %v (%+v)", got, tt.want, violations)
			}
		})
	}
}

func TestOnlyCrisisResourceViolationBlocks(t *testing.T) {
	v := NewVerifier(nil)

	// Pile up every advisory violation at once; none may block.
	response := "You're a genius, guaranteed success, great idea, invest your savings now."
	violations := v.Verify(response, detect.LevelEnhanced, crisis.TypeNone, true)
	if len(violations) == 0 {
		t.Fatal("expected violations")
	}
	if HasBlocking(violations) {
		t.Errorf("advisory violations reported as blocking: %+v", violations)
	}
}
