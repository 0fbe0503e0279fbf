/*
store.go - Persistence contract for tracking records

PURPOSE:
  Defines the narrow keyed read/write interface between the engine and
  storage. The core treats the store as a keyed map per record kind: it
  reads whole rows, writes complete replacements, and never issues raw
  queries.

CONTRACT:
  - Get* returns (nil, nil) when the row is absent; an error only on an
    adapter failure.
  - Upsert* is atomic per key; this is the serialization point for
    concurrent admin commands on the same personnel.
  - DeletePersonnel cascades to links, completions and deferments in one
    atomic step.
  - List* are full scans, used by the tick loop and the report builder.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - tracking/store: in-memory store for tests and dev

SEE ALSO:
  - evaluate.go: Reads scoped records through this interface
  - roster: Upserts personnel through this interface
*/
package tracking

import "context"

// Store is the entity store adapter consumed by the engine.
type Store interface {
	// Personnel
	GetPersonnel(ctx context.Context, id PersonnelID) (*Personnel, error)
	UpsertPersonnel(ctx context.Context, p Personnel) error
	ListPersonnel(ctx context.Context) ([]Personnel, error)

	// DeletePersonnel removes the personnel row and cascades to every
	// link, completion and deferment referencing it.
	DeletePersonnel(ctx context.Context, id PersonnelID) error

	// Links
	GetLink(ctx context.Context, id TelegramID) (*Link, error)
	GetLinkByPersonnel(ctx context.Context, id PersonnelID) (*Link, error)
	UpsertLink(ctx context.Context, l Link) error
	DeleteLink(ctx context.Context, id TelegramID) error
	ListLinks(ctx context.Context) ([]Link, error)

	// Completions, keyed by (personnel, window-year)
	GetCompletion(ctx context.Context, id PersonnelID, windowYear int) (*Completion, error)
	UpsertCompletion(ctx context.Context, c Completion) error
	DeleteCompletion(ctx context.Context, id PersonnelID, windowYear int) error
	ListCompletions(ctx context.Context, id PersonnelID) ([]Completion, error)

	// Deferments, keyed by (personnel, window-year)
	GetDeferment(ctx context.Context, id PersonnelID, windowYear int) (*Deferment, error)
	UpsertDeferment(ctx context.Context, d Deferment) error
	DeleteDeferment(ctx context.Context, id PersonnelID, windowYear int) error
	ListDeferments(ctx context.Context, id PersonnelID) ([]Deferment, error)
}
