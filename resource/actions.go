package resource

import "net/http"

// Action represents one of the seven canonical resource actions
type Action int

const (
	// ActionList serves GET on the collection
	ActionList Action = iota
	// ActionCreate serves POST on the collection
	ActionCreate
	// ActionRetrieve serves GET on an item
	ActionRetrieve
	// ActionUpdate serves PUT on an item
	ActionUpdate
	// ActionPartialUpdate serves PATCH on an item
	ActionPartialUpdate
	// ActionDestroy serves DELETE on an item
	ActionDestroy
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionList:
		return "list"
	case ActionCreate:
		return "create"
	case ActionRetrieve:
		return "retrieve"
	case ActionUpdate:
		return "update"
	case ActionPartialUpdate:
		return "partial_update"
	case ActionDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Method returns the HTTP verb bound to the action
func (a Action) Method() string {
	switch a {
	case ActionList, ActionRetrieve:
		return http.MethodGet
	case ActionCreate:
		return http.MethodPost
	case ActionUpdate:
		return http.MethodPut
	case ActionPartialUpdate:
		return http.MethodPatch
	case ActionDestroy:
		return http.MethodDelete
	default:
		return ""
	}
}

// Detail reports whether the action operates on a single item
func (a Action) Detail() bool {
	switch a {
	case ActionRetrieve, ActionUpdate, ActionPartialUpdate, ActionDestroy:
		return true
	default:
		return false
	}
}

// ActionSet is the capability set a resource definition declares: exactly
// which canonical actions it supports. The dispatcher consults the set
// instead of composing handler mixins.
type ActionSet uint8

// Actions builds a capability set
func Actions(actions ...Action) ActionSet {
	var set ActionSet
	for _, a := range actions {
		set |= 1 << uint(a)
	}
	return set
}

// Capability presets
var (
	// AllActions supports every canonical action
	AllActions = Actions(ActionList, ActionCreate, ActionRetrieve, ActionUpdate, ActionPartialUpdate, ActionDestroy)

	// ReadOnlyActions supports list and retrieve only
	ReadOnlyActions = Actions(ActionList, ActionRetrieve)
)

// Contains reports whether the set supports an action
func (s ActionSet) Contains(a Action) bool {
	return s&(1<<uint(a)) != 0
}

// ActionContext carries request-scoped state into a custom action handler
type ActionContext struct {
	Definition *Definition

	// Record is the resolved item for detail actions, nil otherwise
	Record map[string]interface{}
}

// CustomHandler handles a custom action. It owns the response body; the
// dispatcher has already resolved the action and evaluated permissions.
type CustomHandler func(w http.ResponseWriter, r *http.Request, actx *ActionContext)

// CustomAction binds a named sub-path and verb set to a handler, operating on
// either the collection (Detail=false) or a single item (Detail=true).
type CustomAction struct {
	Name    string
	Methods []string
	Detail  bool
	Handler CustomHandler
}
