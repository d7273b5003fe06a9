package validation

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule kinds in a validation_rule string
const (
	ruleRange   = "range"
	ruleLength  = "length"
	rulePattern = "pattern"
)

type rule struct {
	kind string
	arg  string
}

// ruleStart finds separators that begin a new rule. A bare "|" inside a
// pattern is alternation, so only a separator followed by a rule name splits.
var ruleStart = regexp.MustCompile(`[;|]\s*(range|length|pattern):`)

// parseRules splits a rule string such as "length:2,40;pattern:/^[A-Z]/i".
func parseRules(s string) []rule {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parts []string
	for {
		loc := ruleStart.FindStringIndex(s)
		if loc == nil {
			parts = append(parts, s)
			break
		}
		parts = append(parts, s[:loc[0]])
		s = s[loc[0]+1:]
	}

	rules := make([]rule, 0, len(parts))
	for _, p := range parts {
		kind, arg, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			continue
		}
		rules = append(rules, rule{kind: strings.ToLower(strings.TrimSpace(kind)), arg: strings.TrimSpace(arg)})
	}
	return rules
}

func findRule(rules []rule, kind string) (rule, bool) {
	for _, r := range rules {
		if r.kind == kind {
			return r, true
		}
	}
	return rule{}, false
}

// bounds splits "min,max" into its two trimmed halves
func bounds(arg string) (string, string, bool) {
	lo, hi, ok := strings.Cut(arg, ",")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), true
}

// numericBounds parses "min,max" where either side may be blank or "none".
// Unbounded sides are returned as nil.
func numericBounds(arg string) (lo, hi *float64, ok bool) {
	l, h, ok := bounds(arg)
	if !ok {
		return nil, nil, false
	}
	parse := func(s string) (*float64, bool) {
		if s == "" || strings.EqualFold(s, "none") {
			return nil, true
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return &v, true
	}
	if lo, ok = parse(l); !ok {
		return nil, nil, false
	}
	if hi, ok = parse(h); !ok {
		return nil, nil, false
	}
	return lo, hi, true
}

// compilePattern turns "/expr/flags" into a Go regexp. A value without
// slashes is used as the expression itself. Flags i, m and s map to RE2
// inline flags; g, u and y have no meaning for a single match and are dropped.
func compilePattern(arg string) (*regexp.Regexp, error) {
	expr := arg
	flags := ""
	if strings.HasPrefix(arg, "/") {
		if end := strings.LastIndex(arg, "/"); end > 0 {
			expr = arg[1:end]
			flags = arg[end+1:]
		}
	}

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		}
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	return regexp.Compile(expr)
}
