package gateway

import "regexp"

// Date token forms, in precedence order. The first form that matches anywhere
// in the text wins.
var datePatterns = []*regexp.Regexp{
	// "Oct 15", "October 15th"
	regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}(?:st|nd|rd|th)?\b`),
	// "15/10/2024", "15-10-24"
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	// "2024-10-15"
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
}

// FindDate returns the first date token in text, exactly as written, or ""
// if none is found. Tokens are not normalized: "Oct 15" and "2024-10-15"
// are different dates.
func FindDate(text string) string {
	for _, re := range datePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
