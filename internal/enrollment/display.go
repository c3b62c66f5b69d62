package enrollment

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// housekeeping keys carried by clients but never shown
var hiddenKeys = map[string]bool{"timestamp": true, "nonce": true}

// DisplayRow is one line of the management view.
type DisplayRow struct {
	User             string                 `json:"user"`
	Fields           map[string]interface{} `json:"fields"`
	Legacy           bool                   `json:"legacy"`
	Enrolled         bool                   `json:"enrolled"`
	ConfirmationCode string                 `json:"confirmation_code,omitempty"`
	Timestamp        *time.Time             `json:"timestamp,omitempty"`
}

// DisplayTable is the reconciled view over enrollments and legacy profiles.
type DisplayTable struct {
	Columns []string     `json:"columns"`
	Rows    []DisplayRow `json:"rows"`
}

// ListForDisplay returns every enrollment record plus a minimal row for each
// legacy profile that has not enrolled yet. Rows are flagged legacy when the
// user is a known profile, enrolled or not.
func (s *Service) ListForDisplay(ctx context.Context) (*DisplayTable, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	var known []*profilesRow
	if s.profiles != nil {
		list, err := s.profiles.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		for _, p := range list {
			known = append(known, &profilesRow{username: p.Username, email: p.Email, fullName: p.FullName})
		}
	}
	legacy := make(map[string]bool, len(known))
	for _, p := range known {
		legacy[p.username] = true
	}

	keys := map[string]bool{}
	table := &DisplayTable{}
	enrolled := make(map[string]bool, len(records))
	for _, r := range records {
		enrolled[r.User] = true
		for k := range r.Data {
			keys[k] = true
		}
		ts := r.CreatedAt
		table.Rows = append(table.Rows, DisplayRow{
			User:             r.User,
			Fields:           r.Data,
			Legacy:           legacy[r.User],
			Enrolled:         true,
			ConfirmationCode: r.ConfirmationCode,
			Timestamp:        &ts,
		})
	}
	for _, p := range known {
		if enrolled[p.username] {
			continue
		}
		fields := map[string]interface{}{UserKey: p.username, "email": p.email, "full_name": p.fullName}
		for k := range fields {
			keys[k] = true
		}
		table.Rows = append(table.Rows, DisplayRow{User: p.username, Fields: fields, Legacy: true})
	}
	table.Columns = sortColumns(keys)
	return table, nil
}

type profilesRow struct {
	username, email, fullName string
}

// sortColumns drops housekeeping keys and orders the user key first,
// the rest alphabetically.
func sortColumns(keys map[string]bool) []string {
	cols := make([]string, 0, len(keys))
	for k := range keys {
		if hiddenKeys[k] {
			continue
		}
		cols = append(cols, k)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i] == UserKey {
			return cols[j] != UserKey
		}
		if cols[j] == UserKey {
			return false
		}
		return cols[i] < cols[j]
	})
	return cols
}

// WriteCSV renders the table: one column per data key, then legacy,
// confirmation and timestamp.
func (t *DisplayTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, t.Columns...), "legacy", "confirmation", "timestamp")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		line := make([]string, 0, len(header))
		for _, c := range t.Columns {
			line = append(line, cell(row.Fields[c]))
		}
		ts := ""
		if row.Timestamp != nil {
			ts = row.Timestamp.Format(time.RFC3339)
		}
		line = append(line, fmt.Sprint(row.Legacy), row.ConfirmationCode, ts)
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
