package validation

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"time"

	"github.com/refractio/refract/schema"
)

// coerce converts a raw wire value to the internal typed value for a scalar
// kind. A coercion failure aborts the remaining validators for that field
// only; other fields still run.
func coerce(value interface{}, kind schema.Kind) (interface{}, error) {
	switch kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		return s, nil

	case schema.KindInt:
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("must be an integer")
			}
			return int64(n), nil
		case float32:
			if float64(n) != math.Trunc(float64(n)) {
				return nil, fmt.Errorf("must be an integer")
			}
			return int64(n), nil
		default:
			return nil, fmt.Errorf("must be an integer")
		}

	case schema.KindFloat:
		switch n := value.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		default:
			return nil, fmt.Errorf("must be a number")
		}

	case schema.KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil

	case schema.KindTime:
		switch t := value.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, fmt.Errorf("must be an RFC 3339 timestamp")
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("must be an RFC 3339 timestamp")
		}

	default:
		return value, nil
	}
}

// coerceList coerces a list value element-wise, aggregating every element
// failure instead of stopping at the first.
func coerceList(value interface{}, elem schema.Kind) ([]interface{}, []string) {
	raw, ok := value.([]interface{})
	if !ok {
		return nil, []string{"must be a list"}
	}

	out := make([]interface{}, 0, len(raw))
	var failures []string
	for i, item := range raw {
		typed, err := coerce(item, elem)
		if err != nil {
			failures = append(failures, fmt.Sprintf("element %d: %s", i, err.Error()))
			continue
		}
		out = append(out, typed)
	}
	if len(failures) > 0 {
		return nil, failures
	}
	return out, nil
}

// checkConstraint evaluates a single declarative constraint against a coerced
// value. ConstraintUnique is handled by the uniqueness stage, not here.
func checkConstraint(f *schema.Field, c schema.Constraint, value interface{}) error {
	fail := func(name, fallback string) error {
		if c.Message != "" {
			return fmt.Errorf("%s", c.Message)
		}
		return fmt.Errorf("%s", f.Message(name, fallback))
	}

	switch c.Type {
	case schema.ConstraintMin:
		n, ok := asFloat(value)
		limit, lok := asFloat(c.Value)
		if ok && lok && n < limit {
			return fail("min", fmt.Sprintf("must be at least %v", c.Value))
		}

	case schema.ConstraintMax:
		n, ok := asFloat(value)
		limit, lok := asFloat(c.Value)
		if ok && lok && n > limit {
			return fail("max", fmt.Sprintf("must be at most %v", c.Value))
		}

	case schema.ConstraintMinLength:
		s, ok := value.(string)
		limit, lok := c.Value.(int)
		if ok && lok && len(s) < limit {
			return fail("min_length", fmt.Sprintf("must be at least %d characters", limit))
		}

	case schema.ConstraintMaxLength:
		s, ok := value.(string)
		limit, lok := c.Value.(int)
		if ok && lok && len(s) > limit {
			return fail("max_length", fmt.Sprintf("must be at most %d characters", limit))
		}

	case schema.ConstraintPattern:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		pattern, err := compiledPattern(c.Value)
		if err != nil {
			return err
		}
		if !pattern.MatchString(s) {
			return fail("pattern", "has an invalid format")
		}

	case schema.ConstraintEmail:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if addr, err := mail.ParseAddress(s); err != nil || addr.Address != s {
			return fail("email", "must be a valid email address")
		}

	case schema.ConstraintURL:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if u, err := url.Parse(s); err != nil || u.Scheme == "" || u.Host == "" {
			return fail("url", "must be a valid URL")
		}

	case schema.ConstraintOneOf:
		choices, ok := c.Value.([]interface{})
		if !ok {
			return nil
		}
		for _, choice := range choices {
			if valueEqual(value, choice) {
				return nil
			}
		}
		return fail("one_of", fmt.Sprintf("must be one of %v", choices))
	}

	return nil
}

func compiledPattern(v interface{}) (*regexp.Regexp, error) {
	switch p := v.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		pattern, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return pattern, nil
	default:
		return nil, fmt.Errorf("invalid pattern constraint")
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func valueEqual(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}
