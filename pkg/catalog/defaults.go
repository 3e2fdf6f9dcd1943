package catalog

// =============================================================================
// BUILT-IN INDICATOR DEFINITIONS BY CATEGORY
// All default indicators are registered here and folded once at init.
// A catalog file (see loader.go) can replace this set entirely.
// =============================================================================

// --- CRISIS LANGUAGE INDICATORS ---
func (c *Catalog) registerCrisisLanguageIndicators() {
	cat := CategoryCrisisLanguage

	// Direct ideation phrases carry extra weight: a single one of these
	// plus any other signal should already reach Crisis.
	c.register(cat, "thinking about ending it", 2)
	c.register(cat, "don't want to live", 2)
	c.register(cat, "want to die", 2)
	c.register(cat, "end it all", 2)
	c.register(cat, "if this doesn't work, i'm done", 2)

	c.register(cat, "last hope", 1)
	c.register(cat, "only chance", 1)
	c.register(cat, "can't take it anymore", 1)
	c.register(cat, "can't take it", 1)
	c.register(cat, "nobody understands", 1)
	c.register(cat, "everything is hopeless", 1)
	c.register(cat, "no point", 1)
	c.register(cat, "hurting myself", 2)
}

// --- FINANCIAL DESPERATION INDICATORS ---
func (c *Catalog) registerFinancialDesperationIndicators() {
	cat := CategoryFinancialDesperation

	c.register(cat, "lost my job", 1)
	c.register(cat, "last $", 1)
	c.register(cat, "need money fast", 1)
	c.register(cat, "desperate for income", 1)
	c.register(cat, "can't pay bills", 1)
	c.register(cat, "behind on rent", 1)
	c.register(cat, "facing eviction", 1)
	c.register(cat, "need cash now", 1)
	c.register(cat, "bills due", 1)
	c.register(cat, "can't afford", 1)
	c.register(cat, "last hope", 1)
}

// --- HEALTH CRISIS INDICATORS ---
func (c *Catalog) registerHealthCrisisIndicators() {
	cat := CategoryHealthCrisis

	c.register(cat, "can't see a doctor", 1)
	c.register(cat, "no insurance", 1)
	c.register(cat, "pain won't stop", 1)
	c.register(cat, "no medical help", 1)
	c.register(cat, "can't afford medication", 1)
	c.register(cat, "can't get treatment", 1)
	c.register(cat, "health emergency", 2)
}

// --- ISOLATION INDICATORS ---
func (c *Catalog) registerIsolationIndicators() {
	cat := CategoryIsolation

	c.register(cat, "no one to talk to", 1)
	c.register(cat, "family doesn't understand", 1)
	c.register(cat, "you're the only one who listens", 1)
	c.register(cat, "completely alone", 1)
	c.register(cat, "no one cares", 1)
	c.register(cat, "nobody listens", 1)
	c.register(cat, "all alone", 1)
	c.register(cat, "afraid of my partner", 2)
	c.register(cat, "afraid to go home", 2)
}

// Crisis type names used as resource/action table keys.
// The crisis package defines the matching enum.
const (
	crisisMentalHealth = "mental_health"
	crisisFinancial    = "financial"
	crisisHealth       = "health"
	crisisAbuse        = "abuse"
)

// --- DEFAULT CRISIS RESOURCES (US-based; extend via catalog file) ---
func (c *Catalog) registerDefaultResources() {
	c.resources[crisisMentalHealth] = []Resource{
		{
			Name:         "988 Suicide & Crisis Lifeline",
			Description:  "24/7 crisis support for mental health emergencies",
			Contact:      "Call or text 988",
			Availability: "24/7",
		},
		{
			Name:         "Crisis Text Line",
			Description:  "Free 24/7 text support with trained crisis counselors",
			Contact:      "Text HOME to 741741",
			Availability: "24/7",
		},
		{
			Name:         "International Association for Suicide Prevention",
			Description:  "Global crisis helpline directory",
			Contact:      "https://findahelpline.com",
			Availability: "24/7",
		},
	}

	c.resources[crisisFinancial] = []Resource{
		{
			Name:         "National Foundation for Credit Counseling",
			Description:  "Free financial counseling",
			Contact:      "1-800-388-2227 or https://nfcc.org",
			Availability: "Business hours",
		},
		{
			Name:         "211 Helpline",
			Description:  "Local community resources",
			Contact:      "Dial 211",
			Availability: "24/7",
		},
	}

	c.resources[crisisHealth] = []Resource{
		{
			Name:         "Emergency Services",
			Description:  "Immediate medical emergency",
			Contact:      "911",
			Availability: "24/7",
		},
		{
			Name:         "SAMHSA National Helpline",
			Description:  "Substance abuse and mental health",
			Contact:      "1-800-662-4357",
			Availability: "24/7",
		},
	}

	c.resources[crisisAbuse] = []Resource{
		{
			Name:         "National Domestic Violence Hotline",
			Description:  "24/7 support for domestic violence",
			Contact:      "1-800-799-7233 or text START to 88788",
			Availability: "24/7",
		},
		{
			Name:         "Childhelp National Child Abuse Hotline",
			Description:  "Support for child abuse cases",
			Contact:      "1-800-422-4453",
			Availability: "24/7",
		},
	}
}

// --- DEFAULT RECOMMENDED ACTIONS FOR THE CALLING AI SYSTEM ---
func (c *Catalog) registerDefaultActions() {
	base := []string{
		"Pause normal processing immediately",
		"Acknowledge the crisis state explicitly",
		"Provide immediate crisis resources",
		"Encourage seeking professional help",
		"Avoid any business or productivity advice",
	}

	c.actions[crisisMentalHealth] = append(append([]string{}, base...),
		"Express empathy without minimizing feelings",
		"Do not attempt to provide therapy or counseling",
		"Strongly encourage contacting crisis support immediately",
	)
	c.actions[crisisFinancial] = append(append([]string{}, base...),
		"Avoid suggesting risky financial strategies",
		"Recommend professional financial counseling",
		"Connect to local community resources",
	)
	c.actions[crisisHealth] = append(append([]string{}, base...),
		"For emergencies, recommend calling 911 immediately",
		"Do not provide medical diagnosis or treatment advice",
		"Encourage seeking professional medical care",
	)
	c.actions[crisisAbuse] = append(append([]string{}, base...),
		"Do not suggest confronting the abuser",
		"Share the domestic violence hotline without judgment",
		"Remind the user the hotline works even if they are unsure",
	)
}
