package stringsutil

import "strings"

// RemoveEmptyStrings drops empty and whitespace-only entries and trims the rest.
func RemoveEmptyStrings(slice []string) []string {
	var result []string

	for _, s := range slice {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}

	return result
}

// SplitNonEmpty splits a separated env value such as "a, b,,c" into ["a" "b" "c"].
func SplitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return RemoveEmptyStrings(strings.Split(s, sep))
}
