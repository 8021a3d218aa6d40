package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, caseID, actorID, role, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO case_members(case_id, actor_id, role, created_at) VALUES (?,?,?,?)`, caseID, actorID, role, now)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, caseID, actorID, role string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM case_members WHERE case_id=? AND actor_id=? AND role=?`, caseID, actorID, role)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActorRoles lists the roles an actor holds on a case.
func (r Repo) ActorRoles(ctx context.Context, caseID, actorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role FROM case_members WHERE case_id=? AND actor_id=? ORDER BY role`, caseID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r Repo) ListMembers(ctx context.Context, caseID string) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT case_id, actor_id, role, created_at FROM case_members WHERE case_id=? ORDER BY actor_id, role`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.CaseID, &m.ActorID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
