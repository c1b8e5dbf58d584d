package expr

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// builtin is one entry in the fixed helper library. Helpers are pure: no
// I/O, no mutation, no access outside their arguments.
type builtin struct {
	minArgs int
	maxArgs int
	fn      func(args []any) (any, error)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// postalPatterns covers the countries the address validator understands;
// anything else falls through to a permissive digit check.
var postalPatterns = map[string]*regexp.Regexp{
	"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
	"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`),
	"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]? ?\d[A-Za-z]{2}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"NL": regexp.MustCompile(`^\d{4} ?[A-Za-z]{2}$`),
	"AU": regexp.MustCompile(`^\d{4}$`),
}

var postalDefault = regexp.MustCompile(`^[A-Za-z0-9 \-]{3,10}$`)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

var functions = map[string]builtin{
	"exists": {1, 1, func(args []any) (any, error) {
		return args[0] != nil, nil
	}},

	"isempty": {1, 1, func(args []any) (any, error) {
		switch v := args[0].(type) {
		case nil:
			return true, nil
		case string:
			return strings.TrimSpace(v) == "", nil
		case []any:
			return len(v) == 0, nil
		case map[string]any:
			return len(v) == 0, nil
		default:
			return false, nil
		}
	}},

	"isemail": {1, 1, func(args []any) (any, error) {
		s, ok := args[0].(string)
		return ok && emailPattern.MatchString(s), nil
	}},

	"isphone": {1, 1, func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		stripped := strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' {
				return -1
			}
			return r
		}, s)
		return phonePattern.MatchString(stripped), nil
	}},

	"ispostalcode": {2, 2, func(args []any) (any, error) {
		code, ok1 := args[0].(string)
		country, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		if pattern, ok := postalPatterns[strings.ToUpper(country)]; ok {
			return pattern.MatchString(code), nil
		}
		return postalDefault.MatchString(code), nil
	}},

	"between": {3, 3, func(args []any) (any, error) {
		v, ok1 := toNumber(args[0])
		lo, ok2 := toNumber(args[1])
		hi, ok3 := toNumber(args[2])
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("between requires numeric arguments")
		}
		return v >= lo && v <= hi, nil
	}},

	"inlist": {2, -1, func(args []any) (any, error) {
		needle := args[0]
		haystack := args[1:]
		// inList(x, [a, b]) and inList(x, a, b) are both accepted.
		if len(haystack) == 1 {
			if list, ok := haystack[0].([]any); ok {
				haystack = list
			}
		}
		for _, candidate := range haystack {
			if looseEqual(needle, candidate) {
				return true, nil
			}
		}
		return false, nil
	}},

	"matches": {2, 2, func(args []any) (any, error) {
		s, ok1 := args[0].(string)
		pattern, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		return re.MatchString(s), nil
	}},

	"startswith": {2, 2, func(args []any) (any, error) {
		s, ok1 := args[0].(string)
		prefix, ok2 := args[1].(string)
		return ok1 && ok2 && strings.HasPrefix(s, prefix), nil
	}},

	"endswith": {2, 2, func(args []any) (any, error) {
		s, ok1 := args[0].(string)
		suffix, ok2 := args[1].(string)
		return ok1 && ok2 && strings.HasSuffix(s, suffix), nil
	}},

	"dayssince": {1, 1, func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("daysSince requires a date string")
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return time.Since(t).Hours() / 24, nil
			}
		}
		return nil, fmt.Errorf("unparseable date %q", s)
	}},

	"now": {0, 0, func(args []any) (any, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	}},

	"abs": {1, 1, func(args []any) (any, error) {
		n, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("abs requires a number")
		}
		return math.Abs(n), nil
	}},

	"round": {1, 1, func(args []any) (any, error) {
		n, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("round requires a number")
		}
		return math.Round(n), nil
	}},

	"min": {2, -1, func(args []any) (any, error) {
		return foldNumbers("min", args, math.Min)
	}},

	"max": {2, -1, func(args []any) (any, error) {
		return foldNumbers("max", args, math.Max)
	}},

	"lower": {1, 1, func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("lower requires a string")
		}
		return strings.ToLower(s), nil
	}},

	"upper": {1, 1, func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("upper requires a string")
		}
		return strings.ToUpper(s), nil
	}},

	"length": {1, 1, func(args []any) (any, error) {
		switch v := args[0].(type) {
		case nil:
			return 0.0, nil
		case string:
			return float64(len(v)), nil
		case []any:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		default:
			return nil, fmt.Errorf("length requires a string, list, or map")
		}
	}},
}

func foldNumbers(name string, args []any, combine func(float64, float64) float64) (any, error) {
	acc, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("%s requires numbers", name)
	}
	for _, arg := range args[1:] {
		n, ok := toNumber(arg)
		if !ok {
			return nil, fmt.Errorf("%s requires numbers", name)
		}
		acc = combine(acc, n)
	}
	return acc, nil
}
