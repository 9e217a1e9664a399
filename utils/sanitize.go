package utils

import "github.com/microcosm-cc/bluemonday"

var strictPolicy = bluemonday.StrictPolicy()

// StripHTML removes every tag from user supplied text before it is embedded in outgoing mail.
func StripHTML(input string) string {
	return strictPolicy.Sanitize(input)
}
