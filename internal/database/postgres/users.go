package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
)

// UserRepository provides PostgreSQL-backed user and role storage
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, username, email, phone_number, password_hash, created_at, updated_at`

// EnsureRoles creates the given roles if they are missing
func (r *UserRepository) EnsureRoles(ctx context.Context, roles ...database.Role) error {
	for _, role := range roles {
		if _, err := r.pool.Exec(ctx,
			"INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", string(role),
		); err != nil {
			return fmt.Errorf("ensure role %s: %w", role, err)
		}
	}
	return nil
}

// Create inserts a user and grants its roles in one transaction
func (r *UserRepository) Create(ctx context.Context, u *database.User) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO users (name, username, email, phone_number, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowContext(ctx, query,
		u.Name, u.Username, u.Email, u.PhoneNumber, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, mapError(err))
	}

	if err := setRoles(ctx, tx, u.ID, u.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user %s: %w", u.Username, err)
	}
	return nil
}

// Get retrieves a user with roles by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*database.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByUsername retrieves a user with roles by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*database.User, error) {
	var u database.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user %v: %w", arg, mapError(err))
	}

	roles, err := r.loadRoles(ctx, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[u.ID]
	return &u, nil
}

// ExistsByUsername reports whether the username is taken
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// ExistsByEmail reports whether the email is taken
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE `+column+` = $1)`, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", column, err)
	}
	return exists, nil
}

// List returns all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]database.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []database.User
	var ids []int64
	for rows.Next() {
		var u database.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	roles, err := r.loadRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}

// Update replaces profile fields, password hash and roles
func (r *UserRepository) Update(ctx context.Context, u *database.User) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE users
		SET name = $2, username = $3, email = $4, phone_number = $5, password_hash = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Username, u.Email, u.PhoneNumber, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, mapError(err))
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", u.ID); err != nil {
		return fmt.Errorf("clear roles of user %d: %w", u.ID, err)
	}
	if err := setRoles(ctx, tx, u.ID, u.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user %d: %w", u.ID, err)
	}
	return nil
}

// Delete removes a user; role grants cascade and linked employees are unlinked
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

func setRoles(ctx context.Context, tx *sql.Tx, userID int64, roles []database.Role) error {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[database.Role]bool, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if !seen[role] {
			seen[role] = true
			names = append(names, string(role))
		}
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = ANY($2)
		ON CONFLICT DO NOTHING
	`, userID, pq.Array(names))
	if err != nil {
		return fmt.Errorf("grant roles to user %d: %w", userID, err)
	}
	if n, err := result.RowsAffected(); err == nil && int(n) < len(names) {
		return fmt.Errorf("grant roles to user %d: %w: unknown role in %v", userID, database.ErrNotFound, names)
	}
	return nil
}

// loadRoles fetches roles for many users in one query.
func (r *UserRepository) loadRoles(ctx context.Context, ids []int64) (map[int64][]database.Role, error) {
	result := make(map[int64][]database.Role, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ro.name
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		result[id] = append(result[id], database.Role(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return result, nil
}
