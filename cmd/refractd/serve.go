package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refractio/refract/config"
	"github.com/refractio/refract/middleware"
	"github.com/refractio/refract/render"
	"github.com/refractio/refract/resource"
	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/serialize"
	"github.com/refractio/refract/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resource server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := buildLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		st, closer, err := buildStore(cfg)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer()
		}

		registry := buildSchemas()
		if err := registry.ValidateAll(); err != nil {
			return err
		}

		engine := serialize.NewEngine(registry, st)
		dispatcher := resource.NewDispatcher(engine, log)
		dispatcher.Router().Use(middleware.RequestID)
		dispatcher.Router().Use(middleware.Logging(log))

		var policy resource.PermissionPolicy = resource.AllowAll()
		if cfg.Auth.JWTSecret != "" {
			policy = &resource.JWTPolicy{
				Secret:             []byte(cfg.Auth.JWTSecret),
				AllowAnonymousRead: cfg.Auth.AnonymousRead,
			}
		}
		pagination := resource.Pagination{
			PageSize:    cfg.Server.PageSize,
			MaxPageSize: cfg.Server.MaxPageSize,
		}

		if err := mountResources(dispatcher, registry, st, policy, pagination); err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server := &http.Server{
			Addr:    addr,
			Handler: dispatcher,
		}

		go func() {
			log.Info("listening", zap.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", zap.Error(err))
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return cfg.Build()
}

// buildSchemas declares the demo warehouse domain: suppliers referenced by
// natural key, items embedded under their warehouse.
func buildSchemas() *schema.Registry {
	registry := schema.NewRegistry()

	registry.MustRegister(schema.NewBuilder("supplier").
		Scalar("id", schema.KindInt, schema.ReadOnly()).
		Scalar("name", schema.KindString, schema.Required(), schema.MaxLength(200), schema.Unique()).
		Scalar("contact_email", schema.KindString, schema.Email(), schema.Nullable()).
		MustBuild())

	registry.MustRegister(schema.NewBuilder("item").
		Scalar("id", schema.KindInt, schema.ReadOnly()).
		Scalar("name", schema.KindString, schema.Required(), schema.MaxLength(200)).
		Scalar("stock", schema.KindInt, schema.Required(), schema.Min(10)).
		Relation("supplier", &schema.Relation{
			Target:     "supplier",
			Mode:       schema.ModeNaturalKey,
			NaturalKey: "name",
		}, schema.Source("supplier_id"), schema.Nullable()).
		Scalar("warehouse_id", schema.KindInt, schema.ReadOnly()).
		MustBuild())

	registry.MustRegister(schema.NewBuilder("warehouse").
		Scalar("id", schema.KindInt, schema.ReadOnly()).
		Scalar("name", schema.KindString, schema.Required(), schema.MaxLength(200)).
		Relation("items", &schema.Relation{
			Target:      "item",
			Cardinality: schema.Many,
			Mode:        schema.ModeEmbedded,
			ForeignKey:  "warehouse_id",
		}).
		MustBuild())

	return registry
}

func mountResources(d *resource.Dispatcher, registry *schema.Registry, st store.Store, policy resource.PermissionPolicy, pagination resource.Pagination) error {
	itemSchema, _ := registry.Get("item")
	supplierSchema, _ := registry.Get("supplier")
	warehouseSchema, _ := registry.Get("warehouse")

	restock := resource.CustomAction{
		Name:    "restock",
		Methods: []string{http.MethodPost},
		Detail:  true,
		Handler: func(w http.ResponseWriter, r *http.Request, actx *resource.ActionContext) {
			var body struct {
				Amount int64 `json:"amount"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
				render.BadRequest(w, "amount must be a positive integer")
				return
			}
			current, _ := actx.Record["stock"].(int64)
			updated, err := actx.Definition.Collection.Update(r.Context(), actx.Record, store.Record{
				"stock": current + body.Amount,
			})
			if err != nil {
				render.InternalError(w)
				return
			}
			render.JSON(w, http.StatusOK, updated)
		},
	}

	definitions := []*resource.Definition{
		{
			Name:        "supplier",
			Path:        "/suppliers",
			Schema:      supplierSchema,
			Collection:  st.Collection("supplier"),
			Permissions: policy,
			Pagination:  pagination,
			Actions:     resource.AllActions,
			Filters:     []string{"name"},
		},
		{
			Name:        "item",
			Path:        "/items",
			Schema:      itemSchema,
			Collection:  st.Collection("item"),
			Permissions: policy,
			Pagination:  pagination,
			Actions:     resource.AllActions,
			Custom:      []resource.CustomAction{restock},
			Filters:     []string{"name", "warehouse_id"},
		},
		{
			Name:        "warehouse",
			Path:        "/warehouses",
			Schema:      warehouseSchema,
			Collection:  st.Collection("warehouse"),
			Permissions: policy,
			Pagination:  pagination,
			Actions:     resource.AllActions,
			Filters:     []string{"name"},
		},
	}

	for _, def := range definitions {
		if def.Collection == nil {
			return fmt.Errorf("no collection registered for resource %s", def.Name)
		}
		if err := d.Mount(def); err != nil {
			return err
		}
	}
	return nil
}

func buildStore(cfg *config.Config) (store.Store, func() error, error) {
	if cfg.Database.Driver == "memory" {
		st := store.NewMemoryStore()
		st.Register("supplier", store.NewMemory("id").EnforceUnique("name"))
		st.Register("item", store.NewMemory("id"))
		st.Register("warehouse", store.NewMemory("id"))
		return st, nil, nil
	}

	db, err := sql.Open("sqlite3", cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	st := store.NewSQLStore().
		Register("supplier", store.NewSQL(db, store.DialectSQLite, "suppliers", "id", []string{"name", "contact_email"})).
		Register("item", store.NewSQL(db, store.DialectSQLite, "items", "id", []string{"name", "stock", "supplier_id", "warehouse_id"})).
		Register("warehouse", store.NewSQL(db, store.DialectSQLite, "warehouses", "id", []string{"name"}))
	return st, db.Close, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS suppliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			contact_email TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS warehouses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			stock INTEGER NOT NULL,
			supplier_id INTEGER REFERENCES suppliers(id),
			warehouse_id INTEGER REFERENCES warehouses(id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
