package trace

import (
	"context"
	"fmt"
)

// Point is one sample row read back from the store.
type Point struct {
	Frame     int64
	TimeMS    float64
	Key       string
	Element   int
	Component int
	Value     float64
}

// ProgramInfo summarizes one recorded program generation.
type ProgramInfo struct {
	Token      string
	PatchHash  string
	RecordedAt int64
	Frames     int64
}

// ReadPrograms lists recorded program generations, oldest first. Ordering
// includes a token tiebreaker so results are deterministic.
func (s *Store) ReadPrograms(ctx context.Context) ([]ProgramInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.token, p.patch_hash, p.recorded_at, COUNT(f.frame)
		FROM programs p
		LEFT JOIN frames f ON f.program_token = p.token
		GROUP BY p.token
		ORDER BY p.recorded_at ASC, p.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	infos := []ProgramInfo{}
	for rows.Next() {
		var info ProgramInfo
		if err := rows.Scan(&info.Token, &info.PatchHash, &info.RecordedAt, &info.Frames); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return infos, nil
}

// ReadSeries runs a trace query and returns the matching sample points in
// deterministic order.
func (s *Store) ReadSeries(ctx context.Context, q Query) ([]Point, error) {
	sqlText, params, err := q.compile()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Frame, &p.TimeMS, &p.Key, &p.Element, &p.Component, &p.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return points, nil
}
