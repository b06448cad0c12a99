package utils

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a free-form label (an industry name, a document title) into a
// lowercase identifier safe for folder and table names.
func Slug(input string, maxLen int) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = slugPattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if maxLen > 0 && len(s) > maxLen {
		s = strings.Trim(s[:maxLen], "_")
	}
	return s
}
