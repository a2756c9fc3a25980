package relation

import (
	"errors"
	"testing"
)

func TestBuildLink(t *testing.T) {
	values := map[string]interface{}{"id": int64(42), "slug": "kind of blue"}
	lookup := func(name string) (interface{}, error) {
		v, ok := values[name]
		if !ok {
			return nil, errors.New("no such field")
		}
		return v, nil
	}

	tests := []struct {
		name  string
		route string
		want  string
	}{
		{"single placeholder", "/api/albums/{id}", "/api/albums/42"},
		{"multiple placeholders", "/albums/{id}/{slug}", "/albums/42/kind%20of%20blue"},
		{"no placeholders", "/api/albums", "/api/albums"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildLink(tt.route, lookup)
			if err != nil {
				t.Fatalf("BuildLink failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildLink = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := BuildLink("/x/{missing}", lookup); err == nil {
		t.Error("lookup failure should propagate")
	}
}

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		route   string
		locator string
		want    map[string]string
		wantErr bool
	}{
		{"captures id", "/api/albums/{id}", "/api/albums/42", map[string]string{"id": "42"}, false},
		{"unescapes values", "/albums/{slug}", "/albums/kind%20of%20blue", map[string]string{"slug": "kind of blue"}, false},
		{"absolute locator", "/api/albums/{id}", "https://example.com/api/albums/7", map[string]string{"id": "7"}, false},
		{"segment count mismatch", "/api/albums/{id}", "/api/albums/42/extra", nil, true},
		{"literal mismatch", "/api/albums/{id}", "/api/artists/42", nil, true},
		{"multiple captures", "/a/{x}/b/{y}", "/a/1/b/2", map[string]string{"x": "1", "y": "2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.route, tt.locator)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLink = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLink failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseLink = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("param %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
