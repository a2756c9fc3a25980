package resource

import (
	"errors"
	"net/http"

	"github.com/refractio/refract/store"
)

// Permission errors
var (
	// ErrPermissionDenied short-circuits an action with no side effects
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionPolicy yields a verdict per action. Allow is called after action
// resolution and before any collection access with a nil record; for detail
// actions it is called again with the resolved record. A non-nil error denies.
type PermissionPolicy interface {
	Allow(r *http.Request, action string, record store.Record) error
}

// PermissionFunc adapts a function to a PermissionPolicy
type PermissionFunc func(r *http.Request, action string, record store.Record) error

// Allow implements PermissionPolicy
func (f PermissionFunc) Allow(r *http.Request, action string, record store.Record) error {
	return f(r, action, record)
}

// AllowAll permits every action
func AllowAll() PermissionPolicy {
	return PermissionFunc(func(*http.Request, string, store.Record) error {
		return nil
	})
}

// ReadOnly permits safe verbs and denies everything else
func ReadOnly() PermissionPolicy {
	return PermissionFunc(func(r *http.Request, action string, _ store.Record) error {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return nil
		default:
			return ErrPermissionDenied
		}
	})
}
