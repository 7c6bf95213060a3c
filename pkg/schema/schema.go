// SPDX-License-Identifier: Apache-2.0

// Package schema holds the value types DiffEngine compares: a typed
// schema object (table/view/function/index) and the SchemaState
// container that groups them by category.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/schemaplan/core/pkg/ports"
)

// SchemaObjectCategory is the closed set of object kinds DiffEngine
// compares. Additional categories may be stored in a SchemaState but are
// ignored by diffing (see spec Open Question #2).
type SchemaObjectCategory int

const (
	CategoryTable SchemaObjectCategory = iota
	CategoryView
	CategoryFunction
	CategoryIndex
)

// categoryOrder is the fixed iteration order DiffEngine walks categories
// in: Tables, Views, Functions, Indexes.
var categoryOrder = []SchemaObjectCategory{CategoryTable, CategoryView, CategoryFunction, CategoryIndex}

// CategoryOrder returns the fixed diffing order of the four categories.
func CategoryOrder() []SchemaObjectCategory {
	out := make([]SchemaObjectCategory, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

func (c SchemaObjectCategory) String() string {
	switch c {
	case CategoryTable:
		return "table"
	case CategoryView:
		return "view"
	case CategoryFunction:
		return "function"
	case CategoryIndex:
		return "index"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Definition is an opaque, structured definition for a schema object. It
// must at minimum support an optional "sql" string key, but callers may
// attach any additional JSON-serializable fields.
type Definition map[string]any

// SQL returns the definition's "sql" field, or "" if absent.
func (d Definition) SQL() string {
	if d == nil {
		return ""
	}
	if v, ok := d["sql"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SchemaObject is a named, category-typed database construct.
type SchemaObject struct {
	Category   SchemaObjectCategory
	Name       string
	Definition Definition
}

// UnknownCategoryError reports an attempt to use a category outside the
// four diffed categories through an API that requires one of them.
type UnknownCategoryError struct {
	Category SchemaObjectCategory
}

func (e UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown schema object category %q", e.Category)
}

// EmptyNameError reports an attempt to add an object with an empty name.
type EmptyNameError struct {
	Category SchemaObjectCategory
}

func (e EmptyNameError) Error() string {
	return fmt.Sprintf("object name must not be empty (category %q)", e.Category)
}

// FrozenStateError reports a mutation attempted on a SchemaState after it
// was frozen and handed to DiffEngine.
type FrozenStateError struct{}

func (e FrozenStateError) Error() string {
	return "schema state is frozen and cannot be mutated"
}

// State is a typed container of named schema objects grouped by
// category, with a derived, cacheable checksum.
//
// A State is built with New and AddObject, then handed to Freeze to
// obtain an immutable snapshot safe to pass to DiffEngine. Mutating a
// frozen State returns FrozenStateError.
type State struct {
	objects map[SchemaObjectCategory]map[string]*SchemaObject
	frozen  bool
}

// New returns an empty, mutable SchemaState.
func New() *State {
	return &State{objects: make(map[SchemaObjectCategory]map[string]*SchemaObject)}
}

// AddObject inserts or overwrites the named object within its category.
func (s *State) AddObject(category SchemaObjectCategory, name string, def Definition) error {
	if s.frozen {
		return FrozenStateError{}
	}
	if name == "" {
		return EmptyNameError{Category: category}
	}
	if s.objects == nil {
		s.objects = make(map[SchemaObjectCategory]map[string]*SchemaObject)
	}
	if s.objects[category] == nil {
		s.objects[category] = make(map[string]*SchemaObject)
	}
	s.objects[category][name] = &SchemaObject{Category: category, Name: name, Definition: def}
	return nil
}

// GetObject returns the named object in the given category, or nil if the
// category or name is unknown.
func (s *State) GetObject(category SchemaObjectCategory, name string) *SchemaObject {
	if s == nil || s.objects == nil {
		return nil
	}
	byName, ok := s.objects[category]
	if !ok {
		return nil
	}
	return byName[name]
}

// Names returns the object names within a category, sorted, or nil if the
// category is absent.
func (s *State) Names(category SchemaObjectCategory) []string {
	if s == nil || s.objects == nil {
		return nil
	}
	byName, ok := s.objects[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Freeze returns an immutable clone of the state. The receiver is left
// untouched; the returned State rejects AddObject.
func (s *State) Freeze() *State {
	clone := s.clone()
	clone.frozen = true
	return clone
}

// Frozen reports whether the state has been frozen.
func (s *State) Frozen() bool {
	return s.frozen
}

func (s *State) clone() *State {
	out := New()
	for cat, byName := range s.objects {
		for name, obj := range byName {
			defCopy := make(Definition, len(obj.Definition))
			for k, v := range obj.Definition {
				defCopy[k] = v
			}
			if out.objects[cat] == nil {
				out.objects[cat] = make(map[string]*SchemaObject)
			}
			out.objects[cat][name] = &SchemaObject{Category: cat, Name: name, Definition: defCopy}
		}
	}
	return out
}

// canonicalForm builds the deterministic, insertion-order-independent
// representation used for checksumming and equality. Categories are
// keyed by name (map keys are marshaled in sorted order by
// encoding/json), and within a category, objects are keyed by name for
// the same reason.
func (s *State) canonicalForm() map[string]map[string]Definition {
	out := make(map[string]map[string]Definition)
	if s == nil || s.objects == nil {
		return out
	}
	for cat, byName := range s.objects {
		bucket := make(map[string]Definition, len(byName))
		for name, obj := range byName {
			bucket[name] = obj.Definition
		}
		out[cat.String()] = bucket
	}
	return out
}

// CanonicalSerialize returns the stable JSON serialization of the state
// used to compute its checksum and for definition equality comparisons.
func (s *State) CanonicalSerialize() ([]byte, error) {
	return json.Marshal(s.canonicalForm())
}

// Checksum returns the hash of the state's canonical serialization via
// the supplied CryptoPort. It is derived, not authoritative, and is
// invariant under insertion order.
func (s *State) Checksum(ctx context.Context, crypto ports.CryptoPort) (string, error) {
	data, err := s.CanonicalSerialize()
	if err != nil {
		return "", err
	}
	digest, err := crypto.Hash(ctx, data, "sha256")
	if err != nil {
		return "", err
	}
	return digest, nil
}

// categoryFromString inverts SchemaObjectCategory.String for the four
// diffed categories.
func categoryFromString(s string) (SchemaObjectCategory, bool) {
	for _, c := range categoryOrder {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// FromCategoryMap builds a mutable State from the same
// category-name -> Definition shape CanonicalSerialize produces,
// letting callers round-trip a state through JSON/YAML. Unknown
// category keys are rejected.
func FromCategoryMap(m map[string]map[string]Definition) (*State, error) {
	s := New()
	for catName, byName := range m {
		cat, ok := categoryFromString(catName)
		if !ok {
			return nil, fmt.Errorf("unknown schema object category %q", catName)
		}
		for name, def := range byName {
			if err := s.AddObject(cat, name, def); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// DefinitionsEqual reports whether two definitions are equal under the
// §3.1 contract: hash(canonical_serialize(a)) == hash(canonical_serialize(b)).
func DefinitionsEqual(ctx context.Context, crypto ports.CryptoPort, a, b Definition) (bool, error) {
	aBytes, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	aHash, err := crypto.Hash(ctx, aBytes, "sha256")
	if err != nil {
		return false, err
	}
	bHash, err := crypto.Hash(ctx, bBytes, "sha256")
	if err != nil {
		return false, err
	}
	return aHash == bHash, nil
}
