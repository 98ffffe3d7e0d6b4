package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// ErrEmailTaken is returned when a write trips the users_email_unique
// constraint. The database constraint is the source of truth for email
// uniqueness; the service-level pre-check is a UX convenience only.
var ErrEmailTaken = errors.New("email already taken")

// ErrMissingUsers is returned when a bulk delete touches fewer rows than
// requested, meaning at least one id vanished between validation and delete.
var ErrMissingUsers = errors.New("one or more users no longer exist")

// UserFilter captures resolved list parameters. SortColumn, when non-empty,
// is one of the fixed sortable column names resolved by the service layer,
// never raw client input.
type UserFilter struct {
	Search     string
	SortColumn string
	SortAsc    bool
	Limit      int
	Offset     int
}

// UserRepository encapsulates user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, int64, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, role=$3, updated_at=NOW()
        WHERE id=$4`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, created_at, updated_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, created_at, updated_at
        FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns one page of users plus the pre-pagination match count.
func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int64, error) {
	dataQuery, countQuery, args := buildListQuery(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// buildListQuery assembles the data and count statements for a filter. Both
// share the same WHERE clause and bind args so the total always matches the
// page predicate.
func buildListQuery(filter UserFilter) (dataQuery, countQuery string, args []any) {
	const base = `SELECT id, name, email, password_hash, role, created_at, updated_at FROM users`

	clauses := []string{"1=1"}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, "%"+filter.Search+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(name LIKE %s OR email LIKE %s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	// Insertion order is the collaborator default when no sort is requested.
	order := "id"
	if filter.SortColumn != "" {
		direction := "DESC"
		if filter.SortAsc {
			direction = "ASC"
		}
		order = filter.SortColumn + " " + direction
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	dataQuery = fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`, base, where, order, limit, offset)
	countQuery = fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s`, where)
	return dataQuery, countQuery, args
}

func (r *userRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`
	args := []any{email}
	if excludeID != "" {
		query = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND id<>$2)`
		args = append(args, excludeID)
	}

	var taken bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// MissingIDs returns the subset of ids with no matching user row.
func (r *userRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `SELECT id::text FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role=$1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteMany removes the given set in a single transaction. If any row
// vanished since validation the whole delete rolls back.
func (r *userRepository) DeleteMany(ctx context.Context, ids []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return ErrMissingUsers
	}
	return tx.Commit(ctx)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
