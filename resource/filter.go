package resource

import (
	"net/http"
	"strconv"

	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
)

// buildFilters derives store filters from recognized query parameters. Only
// parameters named in the definition's filter allow-list produce predicates;
// unrecognized parameters are ignored, not errors. Values are coerced to the
// field's kind so they compare against stored values.
func buildFilters(r *http.Request, s *schema.Schema, allowed []string) []store.Filter {
	var filters []store.Filter
	query := r.URL.Query()

	for _, name := range allowed {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		f, ok := s.Field(name)
		if !ok {
			continue
		}
		filters = append(filters, store.Eq(f.SourcePath(), coerceParam(raw, f.Kind)))
	}
	return filters
}

func coerceParam(raw string, kind schema.Kind) interface{} {
	switch kind {
	case schema.KindInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case schema.KindFloat:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case schema.KindBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// parseIdentifier normalizes a path identifier: numeric identifiers compare
// as integers, everything else as strings.
func parseIdentifier(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
