// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaplan/core/internal/testsupport"
	"github.com/schemaplan/core/pkg/schema"
)

func TestAddObjectRejectsEmptyName(t *testing.T) {
	t.Parallel()

	s := schema.New()
	err := s.AddObject(schema.CategoryTable, "", schema.Definition{"sql": "CREATE TABLE x (id int)"})
	require.Error(t, err)
	assert.IsType(t, schema.EmptyNameError{}, err)
}

func TestFrozenStateRejectsMutation(t *testing.T) {
	t.Parallel()

	s := schema.New()
	require.NoError(t, s.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int)"}))

	frozen := s.Freeze()
	assert.True(t, frozen.Frozen())

	err := frozen.AddObject(schema.CategoryTable, "orders", schema.Definition{"sql": "CREATE TABLE orders (id int)"})
	assert.Equal(t, schema.FrozenStateError{}, err)

	// The original, unfrozen state is untouched by Freeze.
	assert.False(t, s.Frozen())
	assert.NoError(t, s.AddObject(schema.CategoryTable, "orders", schema.Definition{"sql": "CREATE TABLE orders (id int)"}))
}

func TestNamesAreSortedAndScopedToCategory(t *testing.T) {
	t.Parallel()

	s := schema.New()
	require.NoError(t, s.AddObject(schema.CategoryTable, "zebra", schema.Definition{}))
	require.NoError(t, s.AddObject(schema.CategoryTable, "apple", schema.Definition{}))
	require.NoError(t, s.AddObject(schema.CategoryView, "report", schema.Definition{}))

	assert.Equal(t, []string{"apple", "zebra"}, s.Names(schema.CategoryTable))
	assert.Equal(t, []string{"report"}, s.Names(schema.CategoryView))
	assert.Nil(t, s.Names(schema.CategoryIndex))
}

func TestChecksumInvariantUnderInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	crypto := &testsupport.MockCrypto{}

	a := schema.New()
	require.NoError(t, a.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int)"}))
	require.NoError(t, a.AddObject(schema.CategoryTable, "orders", schema.Definition{"sql": "CREATE TABLE orders (id int)"}))

	b := schema.New()
	require.NoError(t, b.AddObject(schema.CategoryTable, "orders", schema.Definition{"sql": "CREATE TABLE orders (id int)"}))
	require.NoError(t, b.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int)"}))

	sumA, err := a.Checksum(ctx, crypto)
	require.NoError(t, err)
	sumB, err := b.Checksum(ctx, crypto)
	require.NoError(t, err)

	assert.NotEmpty(t, sumA)
	assert.Equal(t, sumA, sumB)
}

func TestChecksumChangesWithContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	crypto := &testsupport.MockCrypto{}

	a := schema.New()
	require.NoError(t, a.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int)"}))

	b := schema.New()
	require.NoError(t, b.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int, name text)"}))

	sumA, err := a.Checksum(ctx, crypto)
	require.NoError(t, err)
	sumB, err := b.Checksum(ctx, crypto)
	require.NoError(t, err)

	assert.NotEqual(t, sumA, sumB)
}

func TestDefinitionsEqual(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	crypto := &testsupport.MockCrypto{}

	equal, err := schema.DefinitionsEqual(ctx, crypto,
		schema.Definition{"sql": "CREATE TABLE users (id int)"},
		schema.Definition{"sql": "CREATE TABLE users (id int)"})
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = schema.DefinitionsEqual(ctx, crypto,
		schema.Definition{"sql": "CREATE TABLE users (id int)"},
		schema.Definition{"sql": "CREATE TABLE users (id int, name text)"})
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestFromCategoryMapRoundTripsCanonicalSerialize(t *testing.T) {
	t.Parallel()

	s := schema.New()
	require.NoError(t, s.AddObject(schema.CategoryTable, "users", schema.Definition{"sql": "CREATE TABLE users (id int)"}))
	require.NoError(t, s.AddObject(schema.CategoryIndex, "users_pkey", schema.Definition{"sql": "CREATE INDEX users_pkey ON users (id)"}))

	raw, err := s.CanonicalSerialize()
	require.NoError(t, err)

	var m map[string]map[string]schema.Definition
	require.NoError(t, json.Unmarshal(raw, &m))

	rebuilt, err := schema.FromCategoryMap(m)
	require.NoError(t, err)

	rebuiltRaw, err := rebuilt.CanonicalSerialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(rebuiltRaw))
}

func TestFromCategoryMapRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	_, err := schema.FromCategoryMap(map[string]map[string]schema.Definition{
		"trigger": {"t1": {"sql": "CREATE TRIGGER t1 ..."}},
	})
	assert.Error(t, err)
}

func TestDefinitionSQL(t *testing.T) {
	t.Parallel()

	var nilDef schema.Definition
	assert.Equal(t, "", nilDef.SQL())

	assert.Equal(t, "", schema.Definition{}.SQL())
	assert.Equal(t, "", schema.Definition{"sql": 5}.SQL())
	assert.Equal(t, "CREATE TABLE x (id int)", schema.Definition{"sql": "CREATE TABLE x (id int)"}.SQL())
}
