package utils

import "github.com/microcosm-cc/bluemonday"

// Resource names, tags and descriptions are plain text; strip every tag.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText removes markup from user supplied text before it is rendered.
func SanitizeText(input string) string {
	return textPolicy.Sanitize(input)
}
