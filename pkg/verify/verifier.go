// Package verify applies the verification requirements (VRs) to candidate
// AI response text before delivery. Each VR is an independent, stateless
// check; a response may accumulate several violations. All violations are
// advisory except VR-24 at Crisis level, which is blocking: the caller must
// not deliver the response until it carries the resolved crisis resources.
package verify

import (
	"regexp"
	"strings"

	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/crisis"
	"github.com/guardline-ai/guardline/pkg/detect"
)

// VR identifies a verification requirement.
type VR string

const (
	VR20 VR = "VR-20" // Unfounded optimism prevention
	VR22 VR = "VR-22" // Realistic capability assessment
	VR23 VR = "VR-23" // Financial realism verification
	VR24 VR = "VR-24" // Crisis resource provision
	VR25 VR = "VR-25" // Vulnerable user amplification prevention
)

// Violation is one failed check against a candidate response.
type Violation struct {
	VR          VR     `json:"vr"`
	Reason      string `json:"reason"`
	MatchedText string `json:"matched_text,omitempty"`
	Blocking    bool   `json:"blocking"`
}

// forbidden absolute-success phrases (VR-20). Checked at every level.
var optimismPhrases = []string{
	"guaranteed success",
	"easy money",
	"can't fail",
	"definitely will work",
	"overnight success",
	"100% certain",
	"risk-free",
	"absolutely will succeed",
}

// inflated-capability phrases (VR-22).
var capabilityPhrases = []string{
	"you're a genius",
	"you're better than everyone",
	"you can do anything",
	"best in the world",
	"unlike anyone else",
}

// jobsOfNPeople matches "doing the job of N people" style claims.
// Compiled once at package init, shared across all verifiers.
var jobsOfNPeople = regexp.MustCompile(`(?i)(doing|do)\s+the\s+jobs?\s+of\s+\d+\s+people|\d+\s+people's\s+jobs`)

// phrases that indicate the response is discussing financial action (VR-23).
var financialActionPhrases = []string{
	"invest",
	"start a business",
	"startup",
	"take out a loan",
	"put your money",
	"buy stocks",
	"crypto",
	"quit your job",
	"your savings",
	"business venture",
}

// risk-disclosure phrases that satisfy VR-23.
var riskDisclosurePhrases = []string{
	"involve risk",
	"involves risk",
	"there is risk",
	"no guarantee",
	"not guaranteed",
	"may fail",
	"businesses fail",
	"market validation",
	"financial advisor",
	"financial counselor",
	"could lose",
}

// affirmation phrases relevant to VR-25.
var affirmationPhrases = []string{
	"great idea",
	"sounds good",
	"you're right",
	"absolutely",
	"perfect plan",
	"go for it",
	"that will work",
}

// Verifier runs the VR checks. Stateless and safe for concurrent use.
type Verifier struct {
	catalog *catalog.Catalog
}

// NewVerifier creates a verifier over the given catalog (used to resolve
// the expected resource bundle for VR-24). Nil falls back to the default.
func NewVerifier(c *catalog.Catalog) *Verifier {
	if c == nil {
		c = catalog.Default()
	}
	return &Verifier{catalog: c}
}

// Verify checks a candidate response against every VR and returns all
// violations found. amplificationRisk comes from the conversation tracker;
// pass false when no conversation context exists.
func (v *Verifier) Verify(
	response string,
	level detect.ProtectionLevel,
	crisisType crisis.Type,
	amplificationRisk bool,
) []Violation {
	var violations []Violation
	lower := strings.ToLower(response)

	violations = append(violations, checkOptimism(lower)...)
	violations = append(violations, checkCapability(response, lower)...)

	if level >= detect.LevelEnhanced {
		violations = append(violations, checkFinancialRealism(lower)...)
	}
	if level == detect.LevelCrisis {
		violations = append(violations, v.checkCrisisResources(response, crisisType)...)
	}
	if amplificationRisk {
		violations = append(violations, checkAmplification(response, lower)...)
	}

	return violations
}

// HasBlocking reports whether any violation in the set is blocking.
func HasBlocking(violations []Violation) bool {
	for _, violation := range violations {
		if violation.Blocking {
			return true
		}
	}
	return false
}

// VR-20: forbidden absolute-success language, regardless of level.
func checkOptimism(lower string) []Violation {
	var out []Violation
	for _, phrase := range optimismPhrases {
		if strings.Contains(lower, phrase) {
			out = append(out, Violation{
				VR:          VR20,
				Reason:      "unfounded optimism: absolute-success claim",
				MatchedText: phrase,
			})
		}
	}
	return out
}

// VR-22: inflated capability claims.
func checkCapability(response, lower string) []Violation {
	var out []Violation
	if m := jobsOfNPeople.FindString(response); m != "" {
		out = append(out, Violation{
			VR:          VR22,
			Reason:      "inflated capability: role-multiplication claim",
			MatchedText: m,
		})
	}
	for _, phrase := range capabilityPhrases {
		if strings.Contains(lower, phrase) {
			out = append(out, Violation{
				VR:          VR22,
				Reason:      "inflated capability: superlative without evidence",
				MatchedText: phrase,
			})
		}
	}
	return out
}

// VR-23: at Enhanced or above, financial-action talk requires at least one
// risk disclosure.
func checkFinancialRealism(lower string) []Violation {
	var matched string
	for _, phrase := range financialActionPhrases {
		if strings.Contains(lower, phrase) {
			matched = phrase
			break
		}
	}
	if matched == "" {
		return nil
	}
	for _, phrase := range riskDisclosurePhrases {
		if strings.Contains(lower, phrase) {
			return nil
		}
	}
	return []Violation{{
		VR:          VR23,
		Reason:      "financial action discussed without risk disclosure",
		MatchedText: matched,
	}}
}

// VR-24: at Crisis level, the response must contain the resolved crisis
// type's resource contacts verbatim. Absence is the one blocking violation.
func (v *Verifier) checkCrisisResources(response string, crisisType crisis.Type) []Violation {
	if crisisType == crisis.TypeNone || crisisType == "" {
		crisisType = crisis.TypeUnspecified
	}

	lookup := crisisType
	if lookup == crisis.TypeUnspecified {
		// Unspecified crises still require the mental-health bundle: it is
		// the safest default when the dominant category is unclear.
		lookup = crisis.TypeMentalHealth
	}

	resources := v.catalog.ResourcesFor(string(lookup))
	if len(resources) == 0 {
		return nil
	}

	var missing []string
	for _, res := range resources {
		if !strings.Contains(response, res.Contact) {
			missing = append(missing, res.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []Violation{{
		VR:          VR24,
		Reason:      "crisis response missing required resources: " + strings.Join(missing, ", "),
		Blocking:    true,
	}}
}

// VR-25: passive affirmation while the conversation carries amplification
// risk. A clarifying question anywhere in the response clears the check.
func checkAmplification(response, lower string) []Violation {
	if strings.Contains(response, "?") {
		return nil
	}
	for _, phrase := range affirmationPhrases {
		if strings.Contains(lower, phrase) {
			return []Violation{{
				VR:          VR25,
				Reason:      "affirmation without clarifying question under amplification risk",
				MatchedText: phrase,
			}}
		}
	}
	return nil
}
