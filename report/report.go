/*
Package report builds the aggregate completion/deferment table.

PURPOSE:
  Walks every personnel record, classifies each through the tracker, and
  emits a structured table: one sheet per cohort plus an all-rows sheet.
  Encoding to CSV/XLSX happens at the transport boundary; this package
  produces the language-neutral rows, the per-row highlight flags, and the
  per-sheet summary.

HIGHLIGHT LAW:
  A row is highlighted iff its status is in {in_window, overdue} and no
  deferment is active for its window-year. Completed and deferred rows are
  never highlighted.

ORDERING:
  Rows are grouped by cohort (case-insensitive fold, blanks to "No
  Group"), then sorted by personnel ID ascending within each sheet.
  The ordering is stable across runs against the same store state.

SEE ALSO:
  - tracking/evaluate.go: Status classification per row
*/
package report

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

// AllSheet names the union sheet carrying every row.
const AllSheet = "All"

// Row is one personnel line in the report.
type Row struct {
	PersonnelID     string
	Group           string
	Verified        bool
	WindowStart     window.Date
	WindowEnd       window.Date
	Status          tracking.StatusKind
	DaysLeft        int
	DaysOverdue     int
	DefermentActive bool
	DefermentReason string
	Highlight       bool
}

// Summary aggregates one sheet. CompletionRate is completed over total,
// as a percentage with one decimal place; zero when the sheet is empty.
type Summary struct {
	Total          int
	Completed      int
	Outstanding    int
	Deferred       int
	CompletionRate decimal.Decimal
}

// Sheet is one cohort's rows plus its summary.
type Sheet struct {
	Name    string
	Rows    []Row
	Summary Summary
}

// Table is the full report: cohort sheets in group order plus the union.
type Table struct {
	AsOf   window.Date
	Sheets []Sheet
	All    Sheet
}

// Highlighted applies the highlight law for one (status, deferment) pair.
func Highlighted(kind tracking.StatusKind, defermentActive bool) bool {
	if defermentActive {
		return false
	}
	return kind == tracking.StatusInWindow || kind == tracking.StatusOverdue
}

// Build produces the report table for every stored personnel at asOf.
func Build(ctx context.Context, t *tracking.Tracker, asOf window.Date) (Table, error) {
	people, err := t.Store.ListPersonnel(ctx)
	if err != nil {
		return Table{}, &tracking.StoreError{Op: "list personnel", Err: err}
	}
	links, err := t.Store.ListLinks(ctx)
	if err != nil {
		return Table{}, &tracking.StoreError{Op: "list links", Err: err}
	}
	verified := make(map[tracking.PersonnelID]bool, len(links))
	for _, l := range links {
		verified[l.PersonnelID] = true
	}

	sort.Slice(people, func(i, j int) bool {
		gi, gj := strings.ToLower(people[i].GroupLabel()), strings.ToLower(people[j].GroupLabel())
		if gi != gj {
			return gi < gj
		}
		return people[i].ID < people[j].ID
	})

	table := Table{AsOf: asOf, All: Sheet{Name: AllSheet}}
	sheetIdx := make(map[string]int)

	for _, p := range people {
		st, err := t.Evaluate(ctx, p, asOf)
		if err != nil {
			return Table{}, err
		}

		// The deferment row is read regardless of status so an inactive
		// deferment's reason still shows on the report.
		d, err := t.Store.GetDeferment(ctx, p.ID, st.Window.Year)
		if err != nil {
			return Table{}, &tracking.StoreError{Op: "get deferment", Err: err}
		}

		row := Row{
			PersonnelID: string(p.ID),
			Group:       p.GroupLabel(),
			Verified:    verified[p.ID],
			WindowStart: st.Window.Start,
			WindowEnd:   st.Window.End,
			Status:      st.Kind,
			DaysLeft:    st.DaysLeft,
			DaysOverdue: st.DaysOverdue,
		}
		if d != nil {
			row.DefermentActive = d.Effective()
			row.DefermentReason = d.Reason
		}
		row.Highlight = Highlighted(row.Status, row.DefermentActive)

		fold := strings.ToLower(row.Group)
		idx, ok := sheetIdx[fold]
		if !ok {
			idx = len(table.Sheets)
			sheetIdx[fold] = idx
			table.Sheets = append(table.Sheets, Sheet{Name: row.Group})
		}
		table.Sheets[idx].Rows = append(table.Sheets[idx].Rows, row)
		table.All.Rows = append(table.All.Rows, row)
	}

	for i := range table.Sheets {
		table.Sheets[i].Summary = summarize(table.Sheets[i].Rows)
	}
	table.All.Summary = summarize(table.All.Rows)
	return table, nil
}

func summarize(rows []Row) Summary {
	var s Summary
	s.Total = len(rows)
	for _, r := range rows {
		switch r.Status {
		case tracking.StatusCompleted:
			s.Completed++
		case tracking.StatusDeferred:
			s.Deferred++
		case tracking.StatusInWindow, tracking.StatusOverdue:
			s.Outstanding++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = decimal.NewFromInt(int64(s.Completed)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Mul(decimal.NewFromInt(100)).
			Round(1)
	}
	return s
}

// =============================================================================
// TABULAR ENCODING SUPPORT
// =============================================================================

// Header returns the column names for the row encoding.
func Header() []string {
	return []string{
		"personnel_id", "group", "verified",
		"window_start", "window_end",
		"status", "days_left", "days_overdue",
		"deferment_active", "deferment_reason",
		"highlight",
	}
}

// Record encodes the row as strings in Header order, for the external
// tabular encoder.
func (r Row) Record() []string {
	daysLeft, daysOverdue := "", ""
	if r.Status == tracking.StatusInWindow {
		daysLeft = strconv.Itoa(r.DaysLeft)
	}
	if r.Status == tracking.StatusOverdue {
		daysOverdue = strconv.Itoa(r.DaysOverdue)
	}
	return []string{
		r.PersonnelID, r.Group, yesNo(r.Verified),
		r.WindowStart.String(), r.WindowEnd.String(),
		string(r.Status), daysLeft, daysOverdue,
		yesNo(r.DefermentActive), r.DefermentReason,
		yesNo(r.Highlight),
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
