package resource

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/refractio/refract/render"
	"github.com/refractio/refract/serialize"
	"github.com/refractio/refract/store"
	"github.com/refractio/refract/validation"
)

// ErrConflict marks a business-rule rejection during action execution, e.g. a
// disallowed state transition. Handlers and hooks return it (wrapped) to
// surface a 409.
var ErrConflict = errors.New("conflict")

// Dispatcher maps incoming requests onto resource actions. An unmatched path
// is a 404; a matched path with an unsupported verb is a 405 carrying the
// allowed methods.
type Dispatcher struct {
	mux    chi.Router
	engine *serialize.Engine
	log    *zap.Logger
}

// NewDispatcher creates a dispatcher over a serialization engine
func NewDispatcher(engine *serialize.Engine, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}

	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.NotFound(w, "")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.MethodNotAllowed(w, nil)
	})

	return &Dispatcher{
		mux:    mux,
		engine: engine,
		log:    log,
	}
}

// ServeHTTP implements http.Handler
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mux.ServeHTTP(w, r)
}

// Router exposes the underlying chi router for middleware installation
func (d *Dispatcher) Router() chi.Router {
	return d.mux
}

// Mount registers a resource definition's routes. Configuration errors are
// reported here, at startup.
func (d *Dispatcher) Mount(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	collectionMethods := d.collectionMethods(def)
	itemMethods := d.itemMethods(def)

	d.mux.Route(def.Path, func(r chi.Router) {
		r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
			render.MethodNotAllowed(w, collectionMethods)
		})

		if def.Actions.Contains(ActionList) {
			r.Get("/", d.list(def))
		}
		if def.Actions.Contains(ActionCreate) {
			r.Post("/", d.create(def))
		}

		for _, action := range def.Custom {
			if action.Detail {
				continue
			}
			for _, method := range action.Methods {
				r.Method(method, "/"+action.Name, d.custom(def, action))
			}
		}

		r.Route("/{id}", func(r chi.Router) {
			r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
				render.MethodNotAllowed(w, itemMethods)
			})

			if def.Actions.Contains(ActionRetrieve) {
				r.Get("/", d.retrieve(def))
			}
			if def.Actions.Contains(ActionUpdate) {
				r.Put("/", d.update(def, false))
			}
			if def.Actions.Contains(ActionPartialUpdate) {
				r.Patch("/", d.update(def, true))
			}
			if def.Actions.Contains(ActionDestroy) {
				r.Delete("/", d.destroy(def))
			}

			for _, action := range def.Custom {
				if !action.Detail {
					continue
				}
				for _, method := range action.Methods {
					r.Method(method, "/"+action.Name, d.custom(def, action))
				}
			}
		})
	})

	d.log.Info("mounted resource",
		zap.String("resource", def.Name),
		zap.String("path", def.Path))
	return nil
}

func (d *Dispatcher) collectionMethods(def *Definition) []string {
	var methods []string
	if def.Actions.Contains(ActionList) {
		methods = append(methods, http.MethodGet)
	}
	if def.Actions.Contains(ActionCreate) {
		methods = append(methods, http.MethodPost)
	}
	return methods
}

func (d *Dispatcher) itemMethods(def *Definition) []string {
	var methods []string
	if def.Actions.Contains(ActionRetrieve) {
		methods = append(methods, http.MethodGet)
	}
	if def.Actions.Contains(ActionUpdate) {
		methods = append(methods, http.MethodPut)
	}
	if def.Actions.Contains(ActionPartialUpdate) {
		methods = append(methods, http.MethodPatch)
	}
	if def.Actions.Contains(ActionDestroy) {
		methods = append(methods, http.MethodDelete)
	}
	return methods
}

func (d *Dispatcher) list(def *Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := def.Permissions.Allow(r, ActionList.String(), nil); err != nil {
			render.PermissionDenied(w, "")
			return
		}

		filters := buildFilters(r, def.Schema, def.Filters)
		records, err := def.Collection.Query(r.Context(), filters...)
		if err != nil {
			d.writeError(w, def, err)
			return
		}

		results := d.engine.RepresentAll(r.Context(), def.Schema, records)
		render.JSON(w, http.StatusOK, def.Pagination.Paginate(r, results))
	}
}

func (d *Dispatcher) create(def *Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := def.Permissions.Allow(r, ActionCreate.String(), nil); err != nil {
			render.PermissionDenied(w, "")
			return
		}

		body, ok := d.decodeBody(w, r)
		if !ok {
			return
		}

		payload, errs := d.engine.Accept(r.Context(), def.Schema, body, serialize.AcceptOptions{
			Collection: def.Collection,
		})
		if errs != nil {
			render.ValidationError(w, errs)
			return
		}

		created, err := d.engine.Create(r.Context(), def.Schema, def.Collection, payload)
		if err != nil {
			d.writeError(w, def, err)
			return
		}

		d.log.Info("created record",
			zap.String("resource", def.Name),
			zap.Any("id", created[def.Schema.Identifier()]))
		render.JSON(w, http.StatusCreated, d.engine.Representation(r.Context(), def.Schema, created))
	}
}

func (d *Dispatcher) retrieve(def *Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := d.fetch(w, r, def, ActionRetrieve.String())
		if !ok {
			return
		}
		render.JSON(w, http.StatusOK, d.engine.Representation(r.Context(), def.Schema, record))
	}
}

func (d *Dispatcher) update(def *Definition, partial bool) http.HandlerFunc {
	action := ActionUpdate
	if partial {
		action = ActionPartialUpdate
	}
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := d.fetch(w, r, def, action.String())
		if !ok {
			return
		}

		body, ok := d.decodeBody(w, r)
		if !ok {
			return
		}

		payload, errs := d.engine.Accept(r.Context(), def.Schema, body, serialize.AcceptOptions{
			Partial:    partial,
			Updating:   true,
			Collection: def.Collection,
			ExcludeID:  record[def.Schema.Identifier()],
		})
		if errs != nil {
			render.ValidationError(w, errs)
			return
		}

		updated, err := d.engine.Update(r.Context(), def.Schema, def.Collection, record, payload)
		if err != nil {
			d.writeError(w, def, err)
			return
		}

		d.log.Info("updated record",
			zap.String("resource", def.Name),
			zap.String("action", action.String()),
			zap.Any("id", updated[def.Schema.Identifier()]))
		render.JSON(w, http.StatusOK, d.engine.Representation(r.Context(), def.Schema, updated))
	}
}

func (d *Dispatcher) destroy(def *Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := d.fetch(w, r, def, ActionDestroy.String())
		if !ok {
			return
		}

		if err := def.Collection.Delete(r.Context(), record); err != nil {
			d.writeError(w, def, err)
			return
		}

		d.log.Info("destroyed record",
			zap.String("resource", def.Name),
			zap.Any("id", record[def.Schema.Identifier()]))
		render.NoContent(w)
	}
}

func (d *Dispatcher) custom(def *Definition, action CustomAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actx := &ActionContext{Definition: def}

		if action.Detail {
			record, ok := d.fetch(w, r, def, action.Name)
			if !ok {
				return
			}
			actx.Record = record
		} else if err := def.Permissions.Allow(r, action.Name, nil); err != nil {
			render.PermissionDenied(w, "")
			return
		}

		action.Handler(w, r, actx)
	}
}

// fetch resolves the item for a detail action: permission verdict first (no
// side effects on denial), then the lookup, then an object-scoped verdict.
func (d *Dispatcher) fetch(w http.ResponseWriter, r *http.Request, def *Definition, action string) (store.Record, bool) {
	if err := def.Permissions.Allow(r, action, nil); err != nil {
		render.PermissionDenied(w, "")
		return nil, false
	}

	id := parseIdentifier(chi.URLParam(r, "id"))
	record, err := def.Collection.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.NotFound(w, "")
		} else {
			d.writeError(w, def, err)
		}
		return nil, false
	}

	if err := def.Permissions.Allow(r, action, record); err != nil {
		render.PermissionDenied(w, "")
		return nil, false
	}
	return record, true
}

func (d *Dispatcher) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		render.BadRequest(w, "invalid JSON body")
		return nil, false
	}
	return body, true
}

// writeError maps an action failure onto the error taxonomy. Persistence
// failures after validation succeeded surface as 500 with no partial commit
// visible; the scoped transaction guarantees rollback.
func (d *Dispatcher) writeError(w http.ResponseWriter, def *Definition, err error) {
	var errs *validation.Errors
	switch {
	case errors.As(err, &errs):
		render.ValidationError(w, errs)
	case errors.Is(err, store.ErrNotFound):
		render.NotFound(w, "")
	case errors.Is(err, ErrPermissionDenied):
		render.PermissionDenied(w, "")
	case errors.Is(err, ErrConflict), errors.Is(err, store.ErrUniqueViolation):
		render.Conflict(w, err.Error())
	default:
		d.log.Error("action failed",
			zap.String("resource", def.Name),
			zap.Error(err))
		render.InternalError(w)
	}
}
