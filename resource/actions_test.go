package resource

import (
	"net/http"
	"testing"
)

func TestActionProperties(t *testing.T) {
	tests := []struct {
		action Action
		name   string
		method string
		detail bool
	}{
		{ActionList, "list", http.MethodGet, false},
		{ActionCreate, "create", http.MethodPost, false},
		{ActionRetrieve, "retrieve", http.MethodGet, true},
		{ActionUpdate, "update", http.MethodPut, true},
		{ActionPartialUpdate, "partial_update", http.MethodPatch, true},
		{ActionDestroy, "destroy", http.MethodDelete, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.String(); got != tt.name {
				t.Errorf("String = %q, want %q", got, tt.name)
			}
			if got := tt.action.Method(); got != tt.method {
				t.Errorf("Method = %q, want %q", got, tt.method)
			}
			if got := tt.action.Detail(); got != tt.detail {
				t.Errorf("Detail = %v, want %v", got, tt.detail)
			}
		})
	}
}

func TestActionSet(t *testing.T) {
	set := Actions(ActionList, ActionDestroy)

	if !set.Contains(ActionList) || !set.Contains(ActionDestroy) {
		t.Error("set should contain its declared actions")
	}
	if set.Contains(ActionCreate) {
		t.Error("set should not contain undeclared actions")
	}

	for _, a := range []Action{ActionList, ActionCreate, ActionRetrieve, ActionUpdate, ActionPartialUpdate, ActionDestroy} {
		if !AllActions.Contains(a) {
			t.Errorf("AllActions missing %s", a)
		}
	}

	if ReadOnlyActions.Contains(ActionCreate) || ReadOnlyActions.Contains(ActionDestroy) {
		t.Error("ReadOnlyActions must not contain write actions")
	}
	if !ReadOnlyActions.Contains(ActionList) || !ReadOnlyActions.Contains(ActionRetrieve) {
		t.Error("ReadOnlyActions must contain the safe actions")
	}
}
