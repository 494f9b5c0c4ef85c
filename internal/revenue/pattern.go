package revenue

import (
	"log/slog"
	"regexp"

	"github.com/opensource-finance/truerev/internal/domain"
)

// matcher is a compiled PatternRule. A nil re never matches.
type matcher struct {
	rule   domain.PatternRule
	re     *regexp.Regexp
	unless *regexp.Regexp
}

// compilePatterns compiles rules case-insensitively.
// A rule that fails to compile is logged and kept as a permanent non-match.
func compilePatterns(group string, rules []domain.PatternRule) []matcher {
	out := make([]matcher, 0, len(rules))
	for _, r := range rules {
		m := matcher{rule: r}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			slog.Warn("invalid classification pattern",
				"group", group,
				"pattern", r.Pattern,
				"error", err,
			)
			out = append(out, m)
			continue
		}
		if r.Unless != "" {
			unless, err := regexp.Compile("(?i)" + r.Unless)
			if err != nil {
				slog.Warn("invalid classification exclusion",
					"group", group,
					"pattern", r.Pattern,
					"unless", r.Unless,
					"error", err,
				)
				out = append(out, m)
				continue
			}
			m.unless = unless
		}
		m.re = re
		out = append(out, m)
	}
	return out
}

// match reports whether desc matches the pattern.
// With an exclusion, some occurrence must not be followed by text matching Unless.
func (m matcher) match(desc string) bool {
	if m.re == nil {
		return false
	}
	if m.unless == nil {
		return m.re.MatchString(desc)
	}
	for _, loc := range m.re.FindAllStringIndex(desc, -1) {
		if !m.unless.MatchString(desc[loc[1]:]) {
			return true
		}
	}
	return false
}

// firstMatch returns the first matching rule.
func firstMatch(ms []matcher, desc string) (domain.PatternRule, bool) {
	for _, m := range ms {
		if m.match(desc) {
			return m.rule, true
		}
	}
	return domain.PatternRule{}, false
}
