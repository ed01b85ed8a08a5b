// Package sanitize strips markup and script fragments from user-supplied
// text before it is stored or broadcast.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxMessageLength is the longest sanitized message kept; anything longer
// is cut and suffixed with a truncation marker.
const MaxMessageLength = 10000

const truncationSuffix = "... [message truncated]"

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	scriptRegex     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	jsProtoRegex    = regexp.MustCompile(`(?i)javascript\s*:`)
	dataProtoRegex  = regexp.MustCompile(`(?i)data\s*:`)
	eventAttrRegex  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	expressionRegex = regexp.MustCompile(`(?i)expression\s*\(`)
	urlFuncRegex    = regexp.MustCompile(`(?i)url\s*\(`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#x27;", "'",
	"&#x2F;", "/",
	"&#x60;", "`",
	"&#x3D;", "=",
)

func stripMarkup(s string) string {
	s = scriptRegex.ReplaceAllString(s, "")
	s = styleRegex.ReplaceAllString(s, "")
	s = tagRegex.ReplaceAllString(s, "")
	s = jsProtoRegex.ReplaceAllString(s, "")
	s = dataProtoRegex.ReplaceAllString(s, "")
	s = eventAttrRegex.ReplaceAllString(s, "")
	s = expressionRegex.ReplaceAllString(s, "")
	s = urlFuncRegex.ReplaceAllString(s, "")
	return s
}

// Message cleans user text for storage and display. The pipeline removes
// script and style regions, all remaining tags, protocol handlers and
// inline event hooks, decodes common HTML entities, strips any markup the
// decode re-introduced, then trims whitespace and enforces the length cap.
// Running the result through Message again is a no-op.
func Message(input string) string {
	s := stripMarkup(input)
	s = entityReplacer.Replace(s)
	s = stripMarkup(s)
	s = strings.TrimSpace(s)
	if len(s) > MaxMessageLength {
		s = s[:MaxMessageLength] + truncationSuffix
	}
	return s
}
