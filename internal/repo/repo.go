package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"courtline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const caseColumns = `id,title,COALESCE(description,'') AS description,case_length,status,dir,created_by,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (domain.CaseRecord, error) {
	var c domain.CaseRecord
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.CaseLength, &c.Status, &c.Dir, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.CaseRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cases(id,title,description,case_length,status,dir,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Title, nullable(c.Description), c.CaseLength, c.Status, c.Dir, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.CaseRecord, error) {
	return scanCase(r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id))
}

// SingleCase returns the only case in the catalog.
func (r Repo) SingleCase(ctx context.Context) (domain.CaseRecord, error) {
	cases, err := r.ListCases(ctx, CaseFilters{Limit: 2})
	if err != nil {
		return domain.CaseRecord{}, err
	}
	if len(cases) == 0 {
		return domain.CaseRecord{}, ErrNotFound
	}
	if len(cases) > 1 {
		return domain.CaseRecord{}, fmt.Errorf("multiple cases exist; specify --case")
	}
	return cases[0], nil
}

type CaseFilters struct {
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.CaseRecord, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + caseColumns + ` FROM cases WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateCaseStatusTx sets the catalog status mirrored from the projection.
func (r Repo) UpdateCaseStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.CaseStatus, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE cases SET status=?, updated_at=? WHERE id=?`, status, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM cases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// EventFilters select mirrored events. Cursor is an exclusive seq bound:
// LatestEvents walks backwards from it, EventsAfter forwards.
type EventFilters struct {
	CaseID string
	Kind   string
	Limit  int
	Cursor int64
}

func (f EventFilters) where(cmp string) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.CaseID != "" {
		clauses = append(clauses, "case_id=?")
		args = append(args, f.CaseID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "seq"+cmp+"?")
		args = append(args, f.Cursor)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// LatestEvents returns the newest mirrored events first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.IndexedEvent, error) {
	where, args := f.where("<")
	return r.queryEvents(ctx, where+` ORDER BY seq DESC LIMIT ?`, args, f.Limit)
}

// EventsAfter returns events with seq greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, f EventFilters) ([]domain.IndexedEvent, error) {
	where, args := f.where(">")
	return r.queryEvents(ctx, where+` ORDER BY seq ASC LIMIT ?`, args, f.Limit)
}

func (r Repo) queryEvents(ctx context.Context, tail string, args []any, limit int) ([]domain.IndexedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT seq,event_id,case_id,ts,kind,payload_json FROM events `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IndexedEvent
	for rows.Next() {
		var e domain.IndexedEvent
		var payload sql.NullString
		if err := rows.Scan(&e.Seq, &e.ID, &e.CaseID, &e.TS, &e.Kind, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountEvents returns how many events of a case are mirrored.
func (r Repo) CountEvents(ctx context.Context, caseID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE case_id=?`, caseID).Scan(&n)
	return n, err
}
