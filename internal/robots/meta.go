package robots

import "strings"

// MetaDirectives reports the noindex/nofollow state carried by a page's
// <meta name="robots" content="..."> value. Directives are matched as
// lowercase substrings, not comma-delimited tokens, so a value like
// "all noindex" is still caught. An absent or empty content string yields
// both false.
func MetaDirectives(content string) (noIndex, noFollow bool) {
	lower := strings.ToLower(content)

	if strings.Contains(lower, "none") {
		return true, true
	}

	noIndex = strings.Contains(lower, "noindex")
	noFollow = strings.Contains(lower, "nofollow")

	return noIndex, noFollow
}
