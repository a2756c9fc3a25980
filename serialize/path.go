package serialize

import "strings"

// getPath resolves a dotted attribute path against a record, descending
// through nested maps. A missing segment yields (nil, false).
func getPath(record map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = record
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes a value at a dotted attribute path, creating intermediate
// maps as needed.
func setPath(record map[string]interface{}, path string, value interface{}) {
	segments := strings.Split(path, ".")
	current := record
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
