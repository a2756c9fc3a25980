// Package resource maps HTTP verbs onto CRUD and custom actions against a
// schema: action resolution, permission checks, filtering, pagination, and
// response shaping. Definitions are configuration, constructed at process
// start and immutable afterwards.
package resource

import (
	"fmt"

	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
)

// Definition binds a schema, collection access, permissions, and the
// supported actions for one resource type.
type Definition struct {
	// Name identifies the resource in logs and registry lookups
	Name string

	// Path is the collection route prefix, e.g. "/items"
	Path string

	Schema     *schema.Schema
	Collection store.Collection

	Permissions PermissionPolicy
	Pagination  Pagination

	// Actions is the capability set of supported canonical actions
	Actions ActionSet

	// Custom binds additional named actions to sub-paths and verb sets
	Custom []CustomAction

	// Filters is the allow-list of query parameters recognized as filter
	// predicates; each must name a schema field
	Filters []string
}

// validate reports configuration errors at mount time, never at request time
func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("resource definition requires a name")
	}
	if d.Path == "" || d.Path[0] != '/' {
		return fmt.Errorf("resource %s: path must start with /", d.Name)
	}
	if d.Schema == nil {
		return fmt.Errorf("resource %s: schema is required", d.Name)
	}
	if d.Collection == nil {
		return fmt.Errorf("resource %s: collection is required", d.Name)
	}
	if d.Actions == 0 && len(d.Custom) == 0 {
		return fmt.Errorf("resource %s: declares no actions", d.Name)
	}

	for _, name := range d.Filters {
		if !d.Schema.HasField(name) {
			return fmt.Errorf("resource %s: filter %q is not a schema field", d.Name, name)
		}
	}

	seen := make(map[string]bool, len(d.Custom))
	for _, action := range d.Custom {
		if action.Name == "" {
			return fmt.Errorf("resource %s: custom action requires a name", d.Name)
		}
		if action.Handler == nil {
			return fmt.Errorf("resource %s: custom action %s requires a handler", d.Name, action.Name)
		}
		if len(action.Methods) == 0 {
			return fmt.Errorf("resource %s: custom action %s declares no methods", d.Name, action.Name)
		}
		key := fmt.Sprintf("%s:%t", action.Name, action.Detail)
		if seen[key] {
			return fmt.Errorf("resource %s: duplicate custom action %s", d.Name, action.Name)
		}
		seen[key] = true
	}

	if d.Permissions == nil {
		d.Permissions = AllowAll()
	}
	if d.Pagination.PageSize == 0 {
		d.Pagination = DefaultPagination()
	}
	return nil
}
