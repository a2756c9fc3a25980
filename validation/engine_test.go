package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
)

func itemSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.NewBuilder("item").
		Scalar("id", schema.KindInt, schema.ReadOnly()).
		Scalar("name", schema.KindString, schema.Required(), schema.MaxLength(10)).
		Scalar("stock", schema.KindInt, schema.Required(), schema.Min(10)).
		Scalar("price", schema.KindFloat, schema.Nullable()).
		Scalar("status", schema.KindString, schema.Default("draft"), schema.OneOf("draft", "live")).
		MustBuild()
}

func TestValidateAggregatesAcrossFields(t *testing.T) {
	engine := NewEngine()

	// Three independent failures must all appear in one error set.
	payload, errs := engine.Validate(context.Background(), itemSchema(t), map[string]interface{}{
		"name":  "a name far too long",
		"stock": float64(5),
		"price": "cheap",
	}, Options{})

	require.Nil(t, payload)
	require.NotNil(t, errs)
	assert.Equal(t, []string{"must be at most 10 characters"}, errs.Fields["name"])
	assert.Equal(t, []string{"must be at least 10"}, errs.Fields["stock"])
	assert.Equal(t, []string{"must be a number"}, errs.Fields["price"])
}

func TestValidatePresence(t *testing.T) {
	engine := NewEngine()
	s := itemSchema(t)

	t.Run("required fields missing", func(t *testing.T) {
		payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{}, Options{})
		require.Nil(t, payload)
		assert.Equal(t, []string{"is required"}, errs.Fields["name"])
		assert.Equal(t, []string{"is required"}, errs.Fields["stock"])
	})

	t.Run("default fills absent field", func(t *testing.T) {
		payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"name":  "widget",
			"stock": float64(12),
		}, Options{})
		require.Nil(t, errs)

		status, ok := payload.Get("status")
		require.True(t, ok)
		assert.Equal(t, "draft", status)
	})

	t.Run("partial skips absent fields and defaults", func(t *testing.T) {
		payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"stock": float64(42),
		}, Options{Partial: true})
		require.Nil(t, errs)
		require.True(t, payload.Partial())

		_, ok := payload.Get("name")
		assert.False(t, ok, "absent field should not appear in a partial payload")
		_, ok = payload.Get("status")
		assert.False(t, ok, "defaults do not apply on partial update")
	})

	t.Run("read-only input ignored", func(t *testing.T) {
		payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"id":    float64(99),
			"name":  "widget",
			"stock": float64(12),
		}, Options{})
		require.Nil(t, errs)

		_, ok := payload.Get("id")
		assert.False(t, ok, "read-only field must never enter the payload")
	})
}

func TestValidateNullHandling(t *testing.T) {
	engine := NewEngine()
	s := itemSchema(t)

	payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"name":  "widget",
		"stock": float64(12),
		"price": nil,
	}, Options{})
	require.Nil(t, errs)

	price, ok := payload.Get("price")
	require.True(t, ok)
	assert.Nil(t, price)

	// name is not nullable
	payload, errs = engine.Validate(context.Background(), s, map[string]interface{}{
		"name":  nil,
		"stock": float64(12),
	}, Options{})
	require.Nil(t, payload)
	assert.Equal(t, []string{"may not be null"}, errs.Fields["name"])
}

func TestValidateCoercion(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("t").
		Scalar("count", schema.KindInt).
		Scalar("when", schema.KindTime).
		List("tags", schema.KindString).
		MustBuild()

	payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"count": float64(3),
		"when":  "2026-01-02T15:04:05Z",
		"tags":  []interface{}{"a", "b"},
	}, Options{})
	require.Nil(t, errs)

	count, _ := payload.Get("count")
	assert.Equal(t, int64(3), count, "JSON numbers coerce to int64 for int fields")

	when, _ := payload.Get("when")
	parsed, ok := when.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2026, parsed.Year())

	tags, _ := payload.Get("tags")
	assert.Equal(t, []interface{}{"a", "b"}, tags)
}

func TestValidateCoercionFailureAbortsFieldOnly(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("t").
		Scalar("count", schema.KindInt, schema.Min(10)).
		Scalar("name", schema.KindString, schema.MinLength(3)).
		MustBuild()

	_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"count": "three",
		"name":  "ab",
	}, Options{})
	require.NotNil(t, errs)

	// The Min constraint never ran for count, but name's constraint did.
	assert.Equal(t, []string{"must be an integer"}, errs.Fields["count"])
	assert.Equal(t, []string{"must be at least 3 characters"}, errs.Fields["name"])
}

func TestValidateCustomValidators(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("t").
		Scalar("slug", schema.KindString, schema.WithValidator(func(v interface{}) error {
			if v == "reserved" {
				return errors.New("is reserved")
			}
			return nil
		})).
		MustBuild()

	_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"slug": "reserved",
	}, Options{})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"is reserved"}, errs.Fields["slug"])
}

func TestValidateObjectValidators(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("event").
		Scalar("starts", schema.KindInt).
		Scalar("ends", schema.KindInt).
		Validate(func(record map[string]interface{}) error {
			starts, _ := record["starts"].(int64)
			ends, _ := record["ends"].(int64)
			if ends < starts {
				return errors.New("ends must not precede starts")
			}
			return nil
		}).
		Validate(func(record map[string]interface{}) error {
			if starts, _ := record["starts"].(int64); starts < 0 {
				return &schema.FieldError{Field: "starts", Message: "must not be negative"}
			}
			return nil
		}).
		MustBuild()

	_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"starts": float64(-5),
		"ends":   float64(-10),
	}, Options{})
	require.NotNil(t, errs)

	assert.Equal(t, []string{"ends must not precede starts"}, errs.Fields[NonFieldKey])
	assert.Equal(t, []string{"must not be negative"}, errs.Fields["starts"])
}

func TestValidateCustomMessages(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("t").
		Scalar("name", schema.KindString, schema.Required(),
			schema.WithMessages(map[string]string{"required": "give it a name"})).
		MustBuild()

	_, errs := engine.Validate(context.Background(), s, map[string]interface{}{}, Options{})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"give it a name"}, errs.Fields["name"])
}

func TestValidateRelationFieldsCarriedRaw(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("album").
		Relation("artist", &schema.Relation{Target: "artist"}).
		MustBuild()

	payload, errs := engine.Validate(context.Background(), s, map[string]interface{}{
		"artist": float64(7),
	}, Options{})
	require.Nil(t, errs)

	v, ok := payload.Get("artist")
	require.True(t, ok)
	assert.Equal(t, float64(7), v, "relation values pass through uncoerced")
}

func TestValidateUniqueness(t *testing.T) {
	engine := NewEngine()
	s := schema.NewBuilder("artist").
		Scalar("id", schema.KindInt, schema.ReadOnly()).
		Scalar("name", schema.KindString, schema.Required(), schema.Unique()).
		MustBuild()

	col := store.NewMemory("id")
	existing, err := col.Create(context.Background(), store.Record{"name": "Nina"})
	require.NoError(t, err)

	t.Run("conflict", func(t *testing.T) {
		_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"name": "Nina",
		}, Options{Collection: col})
		require.NotNil(t, errs)
		assert.Equal(t, []string{"already exists"}, errs.Fields["name"])
	})

	t.Run("own record excluded on update", func(t *testing.T) {
		_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"name": "Nina",
		}, Options{Collection: col, ExcludeID: existing["id"]})
		assert.Nil(t, errs)
	})

	t.Run("no collection skips the stage", func(t *testing.T) {
		_, errs := engine.Validate(context.Background(), s, map[string]interface{}{
			"name": "Nina",
		}, Options{})
		assert.Nil(t, errs)
	})
}
