package parser

import (
	"regexp"
	"strings"
)

// SeenSet holds the tracking numbers already emitted during one scan. It is
// owned by a single scan and is not safe for concurrent use.
type SeenSet map[string]struct{}

// NewSeenSet creates an empty seen set
func NewSeenSet() SeenSet {
	return make(SeenSet)
}

// Has reports whether number was already emitted
func (s SeenSet) Has(number string) bool {
	_, ok := s[number]
	return ok
}

// Add records number as emitted
func (s SeenSet) Add(number string) {
	s[number] = struct{}{}
}

// Len returns the number of emitted tracking numbers
func (s SeenSet) Len() int {
	return len(s)
}

// ExtractTrackingNumber returns the first match of pattern in body that has not
// been seen yet and records it in seen. When the pattern has capture groups the
// first non-empty group is the match value. It returns false, leaving seen
// untouched, when there is no match or every match was already seen.
func ExtractTrackingNumber(body string, pattern *regexp.Regexp, seen SeenSet) (string, bool) {
	if pattern == nil || body == "" {
		return "", false
	}

	for _, candidate := range findAllValues(body, pattern) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || seen.Has(candidate) {
			continue
		}
		seen.Add(candidate)
		return candidate, true
	}

	return "", false
}

func findAllValues(body string, pattern *regexp.Regexp) []string {
	if pattern.NumSubexp() == 0 {
		return pattern.FindAllString(body, -1)
	}

	matches := pattern.FindAllStringSubmatch(body, -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		value := m[0]
		for _, group := range m[1:] {
			if group != "" {
				value = group
				break
			}
		}
		values = append(values, value)
	}
	return values
}
