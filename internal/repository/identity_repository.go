package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// IdentityRepo stores login identities and their role grants. Grants live
// in identity_roles; its auto-increment id preserves grant order.
type IdentityRepo struct {
	db *sql.DB
}

func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

func (r *IdentityRepo) FindByUsername(ctx context.Context, username string) (model.Identity, error) {
	op := "find identity " + username
	var ident model.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM identities WHERE username = ?`, username).
		Scan(&ident.ID, &ident.Username, &ident.PasswordHash, &ident.CreatedAt)
	if err != nil {
		return model.Identity{}, classify(op, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT r.id, r.role_name, r.description
FROM identity_roles ir JOIN roles r ON r.id = ir.role_id
WHERE ir.identity_id = ? ORDER BY ir.id`, ident.ID)
	if err != nil {
		return model.Identity{}, classify(op, err)
	}
	defer rows.Close()
	ident.Roles = []model.Role{}
	for rows.Next() {
		var (
			role model.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc); err != nil {
			return model.Identity{}, classify(op, err)
		}
		role.Description = desc.String
		ident.Roles = append(ident.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return model.Identity{}, classify(op, err)
	}
	return ident, nil
}

// CreateIdentity inserts the identity and its initial grants together.
func (r *IdentityRepo) CreateIdentity(ctx context.Context, ident model.Identity) (model.Identity, error) {
	op := "create identity " + ident.Username
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Identity{}, classify(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO identities (username, password_hash, created_at) VALUES (?, ?, ?)`,
		ident.Username, ident.PasswordHash, ident.CreatedAt)
	if err != nil {
		return model.Identity{}, classify(op, err)
	}
	if ident.ID, err = res.LastInsertId(); err != nil {
		return model.Identity{}, classify(op, err)
	}
	if err := grantRoles(ctx, tx, ident.ID, ident.Roles); err != nil {
		return model.Identity{}, classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Identity{}, classify(op, err)
	}
	return ident, nil
}

// SaveIdentity stores the password hash and adds any role of ident that is
// not granted yet. Grants are never revoked here.
func (r *IdentityRepo) SaveIdentity(ctx context.Context, ident model.Identity) error {
	op := "save identity " + ident.Username
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM identities WHERE username = ? FOR UPDATE`, ident.Username).Scan(&id)
	if err != nil {
		return classify(op, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE identities SET password_hash = ? WHERE id = ?`, ident.PasswordHash, id); err != nil {
		return classify(op, err)
	}
	if err := grantRoles(ctx, tx, id, ident.Roles); err != nil {
		return classify(op, err)
	}
	return classify(op, tx.Commit())
}

// DeleteIdentity removes the identity. Its grants go with it through the
// identity_roles foreign key.
func (r *IdentityRepo) DeleteIdentity(ctx context.Context, username string) error {
	op := "delete identity " + username
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE username = ?`, username)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func grantRoles(ctx context.Context, tx *sql.Tx, identityID int64, roles []model.Role) error {
	for _, role := range roles {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO identity_roles (identity_id, role_id) VALUES (?, ?) ON DUPLICATE KEY UPDATE role_id = role_id`, identityID, role.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// RoleRepo stores roles. role_name is unique.
type RoleRepo struct {
	db *sql.DB
}

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) FindByName(ctx context.Context, name string) (model.Role, error) {
	var (
		role model.Role
		desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, role_name, description FROM roles WHERE role_name = ?`, name).
		Scan(&role.ID, &role.Name, &desc)
	if err != nil {
		return model.Role{}, classify("find role "+name, err)
	}
	role.Description = desc.String
	return role, nil
}

func (r *RoleRepo) SaveRole(ctx context.Context, role model.Role) (model.Role, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO roles (role_name, description) VALUES (?, ?)`, role.Name, role.Description)
	if err != nil {
		return model.Role{}, classify("save role "+role.Name, err)
	}
	if role.ID, err = res.LastInsertId(); err != nil {
		return model.Role{}, classify("save role "+role.Name, err)
	}
	return role, nil
}
