// SPDX-License-Identifier: Apache-2.0

// Package diff computes the ordered, hashed set of MigrationOperations
// that transform a current SchemaState into a target SchemaState.
package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/schemaplan/core/pkg/ops"
	"github.com/schemaplan/core/pkg/ports"
	"github.com/schemaplan/core/pkg/schema"
)

// Engine computes structural deltas between two schema snapshots.
type Engine struct {
	Crypto ports.CryptoPort
}

// New returns a DiffEngine backed by the given CryptoPort.
func New(crypto ports.CryptoPort) *Engine {
	return &Engine{Crypto: crypto}
}

// CalculateDiff walks the four diffed categories in fixed order (Tables,
// Views, Functions, Indexes) and, within each, emits drops for objects
// only in current, creates for objects only in target, and an AlterTable
// for any object present in both whose definitions differ by hash. The
// result is sorted by priority, stable with respect to discovery order
// within a priority bucket, and every operation's Hash is populated.
//
// CalculateDiff never fails intrinsically; only CryptoPort failures
// propagate.
func (e *Engine) CalculateDiff(ctx context.Context, current, target *schema.State) ([]*ops.Operation, error) {
	var result []*ops.Operation

	for _, category := range schema.CategoryOrder() {
		curNames := current.Names(category)
		for _, name := range curNames {
			if target.GetObject(category, name) != nil {
				continue
			}
			op, err := e.dropOperation(category, name, current.GetObject(category, name))
			if err != nil {
				return nil, err
			}
			result = append(result, op)
		}

		for _, name := range target.Names(category) {
			tgtObj := target.GetObject(category, name)
			curObj := current.GetObject(category, name)

			if curObj == nil {
				op, err := e.createOperation(category, name, tgtObj)
				if err != nil {
					return nil, err
				}
				result = append(result, op)
				continue
			}

			equal, err := schema.DefinitionsEqual(ctx, e.Crypto, curObj.Definition, tgtObj.Definition)
			if err != nil {
				return nil, err
			}
			if equal {
				continue
			}

			op, err := e.alterOperation(category, name, curObj, tgtObj)
			if err != nil {
				return nil, err
			}
			result = append(result, op)
		}
	}

	sortByPriority(result)

	for _, op := range result {
		if err := op.ComputeHash(ctx, e.Crypto); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (e *Engine) dropOperation(category schema.SchemaObjectCategory, name string, obj *schema.SchemaObject) (*ops.Operation, error) {
	kind, err := dropKind(category)
	if err != nil {
		return nil, err
	}
	var def schema.Definition
	if obj != nil {
		def = obj.Definition
	}
	return &ops.Operation{
		Kind:       kind,
		ObjectName: name,
		SQL:        fmt.Sprintf("DROP %s IF EXISTS %s", categoryWord(category), name),
		Metadata:   map[string]any{"original_definition": def},
	}, nil
}

func (e *Engine) createOperation(category schema.SchemaObjectCategory, name string, obj *schema.SchemaObject) (*ops.Operation, error) {
	kind, err := createKind(category)
	if err != nil {
		return nil, err
	}
	sql := obj.Definition.SQL()
	if sql == "" {
		sql = fmt.Sprintf("CREATE %s %s", categoryWord(category), name)
	}
	return &ops.Operation{
		Kind:       kind,
		ObjectName: name,
		SQL:        sql,
		Metadata:   map[string]any{"definition": obj.Definition},
	}, nil
}

func (e *Engine) alterOperation(category schema.SchemaObjectCategory, name string, cur, tgt *schema.SchemaObject) (*ops.Operation, error) {
	sql := tgt.Definition.SQL()
	if sql == "" {
		sql = fmt.Sprintf("-- ALTER %s %s", categoryWord(category), name)
	}
	return &ops.Operation{
		Kind:       ops.AlterTable,
		ObjectName: name,
		SQL:        sql,
		Metadata: map[string]any{
			"current_definition": cur.Definition,
			"target_definition":  tgt.Definition,
			"change_type":        "modify",
		},
	}, nil
}

// UnknownCategoryError reports a category outside the four diffed
// categories reaching an operation that requires a concrete SQL kind.
type UnknownCategoryError struct {
	Category schema.SchemaObjectCategory
}

func (e UnknownCategoryError) Error() string {
	return fmt.Sprintf("no operation kind for category %q", e.Category)
}

func dropKind(category schema.SchemaObjectCategory) (ops.Kind, error) {
	switch category {
	case schema.CategoryTable:
		return ops.DropTable, nil
	case schema.CategoryView:
		return ops.DropView, nil
	case schema.CategoryFunction:
		return ops.DropFunction, nil
	case schema.CategoryIndex:
		return ops.DropIndex, nil
	default:
		return 0, UnknownCategoryError{Category: category}
	}
}

func createKind(category schema.SchemaObjectCategory) (ops.Kind, error) {
	switch category {
	case schema.CategoryTable:
		return ops.CreateTable, nil
	case schema.CategoryView:
		return ops.CreateView, nil
	case schema.CategoryFunction:
		return ops.CreateFunction, nil
	case schema.CategoryIndex:
		return ops.CreateIndex, nil
	default:
		return 0, UnknownCategoryError{Category: category}
	}
}

func categoryWord(category schema.SchemaObjectCategory) string {
	switch category {
	case schema.CategoryTable:
		return "TABLE"
	case schema.CategoryView:
		return "VIEW"
	case schema.CategoryFunction:
		return "FUNCTION"
	case schema.CategoryIndex:
		return "INDEX"
	default:
		return category.String()
	}
}

// sortByPriority performs a stable sort by ascending priority, preserving
// discovery order within a priority bucket.
func sortByPriority(operations []*ops.Operation) {
	sort.SliceStable(operations, func(i, j int) bool {
		return operations[i].Priority() < operations[j].Priority()
	})
}

// Optimize folds duplicate operations keyed by (kind, object name),
// keeping only the first occurrence. It is idempotent.
func Optimize(operations []*ops.Operation) []*ops.Operation {
	type key struct {
		kind ops.Kind
		name string
	}
	seen := make(map[key]bool, len(operations))
	result := make([]*ops.Operation, 0, len(operations))
	for _, op := range operations {
		k := key{kind: op.Kind, name: op.ObjectName}
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, op)
	}
	return result
}
