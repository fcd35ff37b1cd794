package api

import "regexp"

// ParamMatcher recognizes one path segment. Matchers are stateless and shared
// freely across handlers.
type ParamMatcher struct {
	name  string
	match func(segment string) bool
}

// Match reports whether the segment is accepted. Matching is case-sensitive.
func (p ParamMatcher) Match(segment string) bool {
	return p.match(segment)
}

var (
	numericRe = regexp.MustCompile(`^[0-9]+$`)
	hashRe    = regexp.MustCompile(`^[0-9A-Z]{39}$`)
	wordRe    = regexp.MustCompile(`^[a-z_]+$`)
)

var (
	// NumParam matches a run of decimal digits.
	NumParam = ParamMatcher{name: "num", match: numericRe.MatchString}

	// TokenParam matches an opaque integer identifier. Numeric-equivalent,
	// kept separate so handler registrations document their intent.
	TokenParam = ParamMatcher{name: "token", match: numericRe.MatchString}

	// HashParam matches a 39-character uppercase base32 content hash
	// (a TTH or CID).
	HashParam = ParamMatcher{name: "hash", match: hashRe.MatchString}

	// WordParam matches one or more lowercase letters or underscores.
	WordParam = ParamMatcher{name: "word", match: wordRe.MatchString}
)

// ExactParam matches the given literal only.
func ExactParam(literal string) ParamMatcher {
	return ParamMatcher{name: literal, match: func(s string) bool { return s == literal }}
}

// RegexParam matches segments against a custom pattern. The pattern is
// anchored to the full segment.
func RegexParam(pattern string) ParamMatcher {
	re := regexp.MustCompile("^(?:" + pattern + ")$")
	return ParamMatcher{name: pattern, match: re.MatchString}
}
