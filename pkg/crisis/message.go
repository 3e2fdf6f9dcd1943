package crisis

import "strings"

// FormatMessage renders the fixed crisis-message template for an assessment.
// Hard invariant: crisis resources are never suppressed, truncated, or
// reordered, regardless of any formatting preference of the caller. A
// non-detected assessment renders to the empty string.
func FormatMessage(a *Assessment) string {
	if a == nil || !a.Detected {
		return ""
	}

	var b strings.Builder
	b.WriteString("CRISIS SUPPORT RESOURCES\n\n")
	b.WriteString("It sounds like you're going through a very difficult time. ")
	b.WriteString("Please know that help is available:\n\n")

	for _, res := range a.Resources {
		b.WriteString("- ")
		b.WriteString(res.Name)
		b.WriteString("\n  ")
		b.WriteString(res.Description)
		b.WriteString("\n  Contact: ")
		b.WriteString(res.Contact)
		if res.Availability != "" {
			b.WriteString(" (")
			b.WriteString(res.Availability)
			b.WriteString(")")
		}
		b.WriteString("\n\n")
	}

	b.WriteString("You don't have to face this alone. Professional support can help.\n")
	b.WriteString("Please reach out to one of these resources - they are there for you.")
	return b.String()
}
