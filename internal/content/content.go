// ABOUTME: HTML sanitization for rendered output using bluemonday policies
// ABOUTME: Separate block and inline policies; never consulted for article identity

package content

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer cleans untrusted feed HTML for inclusion in the output
// document. Identity and dedup are always computed from the raw content,
// so a policy change here can never alter which articles exist.
type HTMLSanitizer struct {
	block  *bluemonday.Policy
	inline *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer builds the standard policies: a UGC policy for article
// bodies and a span-level-only policy for content rendered inside
// headings and links.
func NewSanitizer() *HTMLSanitizer {
	inline := bluemonday.NewPolicy()
	inline.AllowStandardURLs()
	inline.AllowAttrs("href").OnElements("a")
	inline.AllowElements("a", "em", "strong", "b", "i", "code", "abbr", "sub", "sup")

	return &HTMLSanitizer{
		block:  bluemonday.UGCPolicy(),
		inline: inline,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize returns raw reduced to safe HTML. baseURL is the owning feed's
// link, used to resolve scheme-relative links the policy would otherwise
// drop; inline selects the span-level policy.
func (s *HTMLSanitizer) Sanitize(raw string, baseURL string, inline bool) string {
	if raw == "" {
		return ""
	}
	policy := s.block
	if inline {
		policy = s.inline
	}
	return strings.TrimSpace(policy.Sanitize(raw))
}

// PlainText strips all markup, for use in places like <title> elements
// where no HTML at all is allowed.
func (s *HTMLSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}

// ResolveLink resolves a possibly-relative article link against its
// feed's base link. Unresolvable inputs come back unchanged.
func ResolveLink(link, base string) string {
	if link == "" || base == "" {
		return link
	}
	l, err := url.Parse(link)
	if err != nil || l.IsAbs() {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	return b.ResolveReference(l).String()
}
