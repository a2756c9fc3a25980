package relation

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildLink renders a route template into a canonical locator string,
// resolving each {placeholder} through lookup.
func BuildLink(route string, lookup func(name string) (interface{}, error)) (string, error) {
	segments := strings.Split(route, "/")
	for i, seg := range segments {
		if !isPlaceholder(seg) {
			continue
		}
		name := strings.Trim(seg, "{}")
		value, err := lookup(name)
		if err != nil {
			return "", err
		}
		segments[i] = url.PathEscape(fmt.Sprintf("%v", value))
	}
	return strings.Join(segments, "/"), nil
}

// ParseLink reverse-parses a locator against a route template, returning the
// captured placeholder values. The locator may be absolute; only its path is
// matched. A shape mismatch is a malformed-locator failure.
func ParseLink(route, locator string) (map[string]string, error) {
	parsed, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("malformed locator")
	}

	path := parsed.Path
	want := strings.Split(strings.Trim(route, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return nil, fmt.Errorf("locator does not match route %s", route)
	}

	params := make(map[string]string)
	for i, seg := range want {
		if isPlaceholder(seg) {
			value, err := url.PathUnescape(got[i])
			if err != nil {
				return nil, fmt.Errorf("malformed locator")
			}
			params[strings.Trim(seg, "{}")] = value
			continue
		}
		if seg != got[i] {
			return nil, fmt.Errorf("locator does not match route %s", route)
		}
	}
	return params, nil
}

func isPlaceholder(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}
