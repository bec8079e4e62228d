package database

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Row is a generic view of a row in a collection that references anime.
// Timestamps are carried as strings in TimeLayout.
type Row map[string]any

// TimeLayout is how Row timestamps are rendered. It is the layout the sqlite
// driver writes and parses back into time.Time for DATETIME columns.
const TimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// referenceTables lists the collections the generic row operations may touch.
var referenceTables = map[string]bool{
	"watchlist":         true,
	"reviews":           true,
	"custom_list_items": true,
}

var identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkTable(table string) error {
	if !referenceTables[table] {
		return fmt.Errorf("unknown reference table %q", table)
	}
	return nil
}

func checkColumn(column string) error {
	if !identifierRegex.MatchString(column) {
		return fmt.Errorf("invalid column name %q", column)
	}
	return nil
}

// ID returns the row's primary key.
func (r Row) ID() int64 { return AsInt64(r["id"]) }

// SelectRows returns every row of table whose column fk is one of ids,
// ordered by id.
func (t *Tx) SelectRows(ctx context.Context, table, fk string, ids []int64) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkColumn(fk); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := t.tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE %s IN (%s) ORDER BY id`, table, fk, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s rows: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateRow sets the given columns on the row with id.
func (t *Tx) UpdateRow(ctx context.Context, table string, id int64, fields Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	cols := sortedColumns(fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		if err := checkColumn(c); err != nil {
			return err
		}
		sets[i] = c + " = ?"
		args = append(args, fields[c])
	}
	args = append(args, id)

	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, table, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to update %s row %d: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s row %d: %w", table, id, ErrNotFound)
	}
	return nil
}

// DeleteRow removes the row with id.
func (t *Tx) DeleteRow(ctx context.Context, table string, id int64) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("failed to delete %s row %d: %w", table, id, err)
	}
	return nil
}

// UpsertRow writes a full row back, replacing any row with the same id or
// the same unique key.
func (t *Tx) UpsertRow(ctx context.Context, table string, row Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(row) == 0 {
		return nil
	}

	cols := sortedColumns(row)
	args := make([]any, len(cols))
	for i, c := range cols {
		if err := checkColumn(c); err != nil {
			return err
		}
		args[i] = row[c]
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	_, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to restore %s row %d: %w", table, row.ID(), err)
	}
	return nil
}

func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// normalizeValue maps driver values onto the small set of types Row holds:
// nil, int64, float64, string.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	default:
		return v
	}
}

// AsInt64 converts a Row value to int64. Unknown types yield 0.
func AsInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}

// AsFloat converts a numeric Row value to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// AsString returns a string Row value, or "" for anything else.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsTime parses a Row timestamp. Zero time if absent or unparseable.
func AsTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
