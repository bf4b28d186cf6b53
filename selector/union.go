package selector

import (
	"errors"
	"strings"
)

// StripPrefixes removes any stack of "<scheme>=" prefixes naming one of
// schemes. Stripping is idempotent: a stripped expression is returned
// unchanged by a second call.
func StripPrefixes(expr string, schemes ...string) string {
	s := strings.TrimSpace(expr)
	for {
		stripped := false
		for _, sc := range schemes {
			if sc != "" && strings.HasPrefix(s, sc+"=") {
				s = strings.TrimSpace(s[len(sc)+1:])
				stripped = true
			}
		}
		if !stripped {
			return s
		}
	}
}

// JoinUnion joins candidate expressions with the alternation operator.
func JoinUnion(exprs []string) string {
	return strings.Join(exprs, " | ")
}

// SplitUnion splits expr at top-level "|" operators. Bars inside string
// literals, predicates or function arguments are left alone.
func SplitUnion(expr string) ([]string, error) {
	var (
		parts []string
		quote rune
		depth int
		start int
	)
	for i, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
			if depth < 0 {
				return nil, malformed(expr, errors.New("unbalanced closing bracket"))
			}
		case r == '|' && depth == 0:
			parts = append(parts, strings.TrimSpace(expr[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, malformed(expr, errors.New("unterminated string literal"))
	}
	if depth != 0 {
		return nil, malformed(expr, errors.New("unbalanced brackets"))
	}
	parts = append(parts, strings.TrimSpace(expr[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, malformed(expr, errors.New("empty union member"))
		}
	}
	return parts, nil
}
