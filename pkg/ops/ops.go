// SPDX-License-Identifier: Apache-2.0

// Package ops defines MigrationOperation, the typed, hashed,
// priority-ordered value object DiffEngine produces and PlanCompiler
// consumes.
package ops

import (
	"context"
	"fmt"

	"github.com/schemaplan/core/pkg/ports"
)

// Kind is the closed set of operation kinds DiffEngine can emit. Ordinal
// values are stable and part of the hashing contract — never renumber
// them.
type Kind int

const (
	CreateTable Kind = iota
	DropTable
	AlterTable
	CreateIndex
	DropIndex
	CreateFunction
	DropFunction
	CreateView
	DropView
	InsertData
	UpdateData
	DeleteData
)

func (k Kind) String() string {
	switch k {
	case CreateTable:
		return "CreateTable"
	case DropTable:
		return "DropTable"
	case AlterTable:
		return "AlterTable"
	case CreateIndex:
		return "CreateIndex"
	case DropIndex:
		return "DropIndex"
	case CreateFunction:
		return "CreateFunction"
	case DropFunction:
		return "DropFunction"
	case CreateView:
		return "CreateView"
	case DropView:
		return "DropView"
	case InsertData:
		return "InsertData"
	case UpdateData:
		return "UpdateData"
	case DeleteData:
		return "DeleteData"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// priority gives the execution ordering for each kind; lower runs first.
// Unknown kinds fall back to 50.
var priority = map[Kind]int{
	DropView:       0,
	DropFunction:   1,
	DropIndex:      2,
	AlterTable:     3,
	DropTable:      4,
	CreateTable:    5,
	CreateFunction: 6,
	CreateView:     7,
	CreateIndex:    8,
	InsertData:     9,
	UpdateData:     10,
	DeleteData:     11,
}

// Priority returns the kind's execution-order priority. Unknown kinds
// yield 50.
func (k Kind) Priority() int {
	if p, ok := priority[k]; ok {
		return p
	}
	return 50
}

// destructiveKinds is the set of kinds that drop or remove data.
var destructiveKinds = map[Kind]bool{
	DropTable:    true,
	DropIndex:    true,
	DropFunction: true,
	DropView:     true,
	DeleteData:   true,
}

// IsDestructive reports whether the kind drops or deletes existing state.
func (k Kind) IsDestructive() bool {
	return destructiveKinds[k]
}

// Verb returns the human-readable verb phrase for a kind, e.g. "Create table".
func (k Kind) Verb() string {
	switch k {
	case CreateTable:
		return "Create table"
	case DropTable:
		return "Drop table"
	case AlterTable:
		return "Alter table"
	case CreateIndex:
		return "Create index"
	case DropIndex:
		return "Drop index"
	case CreateFunction:
		return "Create function"
	case DropFunction:
		return "Drop function"
	case CreateView:
		return "Create view"
	case DropView:
		return "Drop view"
	case InsertData:
		return "Insert data"
	case UpdateData:
		return "Update data"
	case DeleteData:
		return "Delete data"
	default:
		return k.String()
	}
}

// Operation is one atomic planned schema change: a typed kind, the
// object it targets, the SQL (or placeholder) that performs it, and a
// hash identifying the (kind, object name, sql) triple.
type Operation struct {
	Kind       Kind
	ObjectName string
	SQL        string
	Metadata   map[string]any
	Hash       string
}

// Priority is the operation kind's execution-order priority.
func (o *Operation) Priority() int {
	return o.Kind.Priority()
}

// IsDestructive reports whether the operation drops or deletes existing
// state.
func (o *Operation) IsDestructive() bool {
	return o.Kind.IsDestructive()
}

// HashInput is the canonical string DiffEngine hashes to populate Hash.
// (kind, object_name, sql) defines identity: equal triples must yield
// equal hashes.
func (o *Operation) HashInput() string {
	return fmt.Sprintf("%d:%s:%s", int(o.Kind), o.ObjectName, o.SQL)
}

// ComputeHash sets Hash from HashInput() via the supplied CryptoPort.
func (o *Operation) ComputeHash(ctx context.Context, crypto ports.CryptoPort) error {
	digest, err := crypto.Hash(ctx, []byte(o.HashInput()), "sha256")
	if err != nil {
		return err
	}
	o.Hash = digest
	return nil
}

// UnhashedOperationError reports an operation used where a populated
// Hash was required but never computed.
type UnhashedOperationError struct {
	Kind       Kind
	ObjectName string
}

func (e UnhashedOperationError) Error() string {
	return fmt.Sprintf("operation %s %q has no hash; ComputeHash was never called", e.Kind, e.ObjectName)
}
