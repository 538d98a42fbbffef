// Package sanitize cleans visitor-submitted free text before it is stored
// locally or sent to the remote backend.
//
// Clean decodes HTML entities, removes script and style blocks, markup tags
// and javascript:/data: scheme prefixes, collapses whitespace and truncates.
// The decode and strip passes repeat until the text stops changing, so that
// Clean(Clean(x), n) == Clean(x, n) even for doubly encoded input such as
// "&amp;lt;script&amp;gt;".
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Field limits applied to recommendations.
const (
	MaxNameLen    = 60
	MaxContactLen = 120
	MaxMessageLen = 400

	// DefaultMaxLen is used by callers that do not have a field-specific limit.
	DefaultMaxLen = 280
)

var (
	reHexEntity   = regexp.MustCompile(`(?i)&#x([0-9a-f]+);?`)
	reDecEntity   = regexp.MustCompile(`&#([0-9]+);?`)
	reNamedEntity = regexp.MustCompile(`(?i)&(amp|lt|gt|quot|apos);`)

	reScript = regexp.MustCompile(`(?i)<script[\s\S]*?>[\s\S]*?</script>`)
	reStyle  = regexp.MustCompile(`(?i)<style[\s\S]*?>[\s\S]*?</style>`)
	reTag    = regexp.MustCompile(`</?[^>]+>`)
	reScheme = regexp.MustCompile(`(?i)javascript:|data:`)
)

var named = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// Clean returns text with markup, entities and dangerous URI schemes removed,
// whitespace collapsed, and at most maxLen characters when maxLen > 0.
func Clean(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	for {
		next := collapse(strip(decode(text)))
		if next == text {
			break
		}
		text = next
	}
	return truncate(text, maxLen)
}

// Recommendation returns r with its free-text fields cleaned to their limits.
// Every other field is carried over untouched.
func Recommendation(r domain.Recommendation) domain.Recommendation {
	r.Name = Clean(r.Name, MaxNameLen)
	r.Contact = Clean(r.Contact, MaxContactLen)
	r.Message = Clean(r.Message, MaxMessageLen)
	return r
}

// Recommendations cleans every record of rs into a new slice.
func Recommendations(rs []domain.Recommendation) []domain.Recommendation {
	out := make([]domain.Recommendation, len(rs))
	for i, r := range rs {
		out[i] = Recommendation(r)
	}
	return out
}

func decode(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	s = reHexEntity.ReplaceAllStringFunc(s, func(m string) string {
		sub := reHexEntity.FindStringSubmatch(m)
		return codePoint(sub[1], 16)
	})
	s = reDecEntity.ReplaceAllStringFunc(s, func(m string) string {
		sub := reDecEntity.FindStringSubmatch(m)
		return codePoint(sub[1], 10)
	})
	return reNamedEntity.ReplaceAllStringFunc(s, func(m string) string {
		return named[strings.ToLower(m[1:len(m)-1])]
	})
}

// codePoint renders a numeric character reference. Out of range values and
// surrogates decode to U+FFFD.
func codePoint(digits string, base int) string {
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil || n > utf8.MaxRune {
		return "�"
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return "�"
	}
	return string(r)
}

func strip(s string) string {
	s = reScript.ReplaceAllString(s, " ")
	s = reStyle.ReplaceAllString(s, " ")
	s = reTag.ReplaceAllString(s, " ")
	return reScheme.ReplaceAllString(s, "")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen]))
}
