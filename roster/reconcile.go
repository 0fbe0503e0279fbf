/*
Package roster reconciles tabular personnel uploads against the store.

PURPOSE:
  An admin uploads a sheet of personnel (ID, birthday, optional group).
  Reconcile validates each row independently and performs idempotent
  upserts: existing records get their birthday and group overwritten,
  links/completions/deferments are never touched by a re-import.

INPUT:
  Rows are already-decoded text. The external decoding collaborator owns
  file formats and character encodings; this package still normalizes
  stray BOM and zero-width characters so a leftover marker never corrupts
  the first data row, and maps common header aliases to canonical columns.

PARTIAL FAILURE:
  One malformed row never aborts the batch. Failures are collected with
  their row index; processing continues.

SEE ALSO:
  - tracking/store.go: Upsert target
  - api/handlers.go: CSV boundary feeding FromRecords
*/
package roster

import (
	"context"
	"strings"

	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

// Row is one already-decoded upload row.
type Row struct {
	PersonnelID string
	Birthday    string
	Group       string
}

// RowError records one failed row; Index is the zero-based position in
// the input sequence.
type RowError struct {
	Index int
	Err   error
}

// Result summarizes one reconciliation pass.
type Result struct {
	Inserted int
	Updated  int
	Errors   []RowError
}

// Reconcile validates and upserts rows one by one. Every failure is
// row-scoped and lands in Result.Errors; the batch itself never fails.
func Reconcile(ctx context.Context, store tracking.Store, rows []Row) Result {
	var res Result
	for i, r := range rows {
		pid := Clean(r.PersonnelID)
		if pid == "" {
			res.Errors = append(res.Errors, RowError{Index: i,
				Err: &tracking.ValidationError{Field: "personnel_id", Message: "must not be empty"}})
			continue
		}

		bd, err := window.ParseDate(Clean(r.Birthday))
		if err != nil {
			res.Errors = append(res.Errors, RowError{Index: i,
				Err: &tracking.ValidationError{Field: "birthday", Message: err.Error()}})
			continue
		}

		// Fresh read right before the write; the upsert is atomic per key.
		existing, err := store.GetPersonnel(ctx, tracking.PersonnelID(pid))
		if err != nil {
			res.Errors = append(res.Errors, RowError{Index: i,
				Err: &tracking.StoreError{Op: "get personnel", Err: err}})
			continue
		}

		group := Clean(r.Group)
		if existing != nil && group == "" {
			// Re-import without a group keeps the stored assignment.
			group = existing.Group
		}

		p := tracking.Personnel{ID: tracking.PersonnelID(pid), Birthday: bd, Group: group}
		if err := store.UpsertPersonnel(ctx, p); err != nil {
			res.Errors = append(res.Errors, RowError{Index: i,
				Err: &tracking.StoreError{Op: "upsert personnel", Err: err}})
			continue
		}

		if existing == nil {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res
}

// =============================================================================
// HEADER MAPPING - canonical columns from common aliases
// =============================================================================

const (
	colPersonnelID = "personnel_id"
	colBirthday    = "birthday"
	colGroup       = "group"
)

var headerAliases = map[string]string{
	"personnel_id":  colPersonnelID,
	"personnel id":  colPersonnelID,
	"id":            colPersonnelID,
	"birthday":      colBirthday,
	"dob":           colBirthday,
	"dateofbirth":   colBirthday,
	"date of birth": colBirthday,
	"group":         colGroup,
	"group_name":    colGroup,
	"grp":           colGroup,
	"team":          colGroup,
}

// Clean trims whitespace and strips BOM and zero-width characters that
// spreadsheet exports leave behind.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = strings.ReplaceAll(s, "\u200B", "")
	return strings.TrimSpace(s)
}

// FromRecords maps a header row plus data records to Rows. Unknown or
// extra columns are ignored without error. The second return is false
// when the header lacks the two required columns.
func FromRecords(header []string, records [][]string) ([]Row, bool) {
	pidIdx, bdIdx, grpIdx := -1, -1, -1
	for i, h := range header {
		canon, ok := headerAliases[strings.ToLower(Clean(h))]
		if !ok {
			continue
		}
		switch canon {
		case colPersonnelID:
			if pidIdx < 0 {
				pidIdx = i
			}
		case colBirthday:
			if bdIdx < 0 {
				bdIdx = i
			}
		case colGroup:
			if grpIdx < 0 {
				grpIdx = i
			}
		}
	}
	if pidIdx < 0 || bdIdx < 0 {
		return nil, false
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		var r Row
		if pidIdx < len(rec) {
			r.PersonnelID = rec[pidIdx]
		}
		if bdIdx < len(rec) {
			r.Birthday = rec[bdIdx]
		}
		if grpIdx >= 0 && grpIdx < len(rec) {
			r.Group = rec[grpIdx]
		}
		rows = append(rows, r)
	}
	return rows, true
}
