package trace

import (
	"fmt"
	"strings"
)

// Query selects sample points from a recorded trace.
//
// Every compiled query is fully parameterized (values are never
// interpolated into SQL) and carries a deterministic ORDER BY with a full
// tiebreaker, so the same store always yields the same row order.
type Query struct {
	// Token restricts to one program generation. Required.
	Token string
	// Keys restricts to specific debug keys; empty means all keys.
	Keys []string
	// FromFrame/ToFrame bound the frame range inclusively. Zero values
	// mean unbounded on that side.
	FromFrame int64
	ToFrame   int64
	// Elements restricts to specific element indices; empty means all.
	Elements []int
	// Limit caps the number of returned rows; 0 means no cap.
	Limit int
}

// compile turns the query into parameterized SQL.
func (q Query) compile() (string, []any, error) {
	if q.Token == "" {
		return "", nil, fmt.Errorf("trace query: program token is required")
	}
	if q.ToFrame != 0 && q.ToFrame < q.FromFrame {
		return "", nil, fmt.Errorf("trace query: frame range [%d, %d] is inverted", q.FromFrame, q.ToFrame)
	}
	if q.Limit < 0 {
		return "", nil, fmt.Errorf("trace query: negative limit")
	}

	var (
		where  []string
		params []any
	)
	where = append(where, "s.program_token = ?")
	params = append(params, q.Token)

	if len(q.Keys) > 0 {
		where = append(where, "s.key IN ("+placeholders(len(q.Keys))+")")
		for _, k := range q.Keys {
			params = append(params, k)
		}
	}
	if q.FromFrame > 0 {
		where = append(where, "s.frame >= ?")
		params = append(params, q.FromFrame)
	}
	if q.ToFrame > 0 {
		where = append(where, "s.frame <= ?")
		params = append(params, q.ToFrame)
	}
	if len(q.Elements) > 0 {
		where = append(where, "s.element IN ("+placeholders(len(q.Elements))+")")
		for _, e := range q.Elements {
			params = append(params, e)
		}
	}

	sqlText := `
		SELECT s.frame, f.time_ms, s.key, s.element, s.component, s.value
		FROM samples s
		JOIN frames f ON f.program_token = s.program_token AND f.frame = s.frame
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY s.frame ASC, s.key COLLATE BINARY ASC, s.element ASC, s.component ASC`

	if q.Limit > 0 {
		sqlText += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sqlText, params, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
