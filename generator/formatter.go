package generator

import (
	"regexp"
	"strings"
)

const colonPreambleLimit = 30

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\?(\s+#|\s*$)`),
	regexp.MustCompile(`(?i)\s+When('s|\sis|\swas|\swill)`),
	regexp.MustCompile(`(?i)\s+What('s|\sis|\swas|\swill)`),
	regexp.MustCompile(`(?i)\s+Who('s|\sis|\swas|\swill)`),
	regexp.MustCompile(`(?i)\s+Why\s`),
	regexp.MustCompile(`(?i)\s+How\s`),
}

var hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9]+`)

// Format restructures flat generated text with line breaks. Text that already
// contains a line break is returned unchanged. Otherwise three independent
// rules apply in order, each at most once: break after a short colon preamble,
// blank line before the first question, blank line before trailing hashtags.
func Format(content string) string {
	if strings.Contains(content, "\n") {
		return content
	}

	formatted := content

	if idx := strings.Index(formatted, ":"); idx >= 0 && idx < colonPreambleLimit {
		formatted = formatted[:idx+1] + "\n" + formatted[idx+1:]
	}

	for _, pattern := range questionPatterns {
		loc := pattern.FindStringIndex(formatted)
		if loc == nil || loc[0] == 0 {
			continue
		}
		formatted = formatted[:loc[0]] + "\n\n" + strings.TrimSpace(formatted[loc[0]:])
		break
	}

	if hashtagPattern.MatchString(formatted) {
		position := strings.Index(formatted, "#")
		if position > len(formatted)/2 && !strings.HasSuffix(formatted[:position], "\n") {
			formatted = formatted[:position] + "\n\n" + formatted[position:]
		}
	}

	return formatted
}
