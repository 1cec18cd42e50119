package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/user"
)

const userColumns = `id, name, email, phone, avatar, campus, role, is_active, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		usr.ID, usr.Name, usr.Email, usr.Phone, usr.Avatar, usr.Campus, usr.Role, usr.IsActive,
		usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (r userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	var usr user.User
	err := get(ctx, r.getExec(exec), &usr, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user by id")
	}
	return usr, nil
}

func (r userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	var usr user.User
	err := get(ctx, r.getExec(exec), &usr, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user by email")
	}
	return usr, nil
}

func (r userRepository) GetUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]user.User, error) {
	users := make([]user.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	err := selectIn(ctx, r.getExec(exec), &users, `SELECT `+userColumns+` FROM users WHERE id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "selecting users by id")
	}
	return users, nil
}

func (r userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		conds = append(conds, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`)
		p := likePattern(filter.Search)
		args = append(args, p, p)
	}
	if filter.Campus != "" {
		conds = append(conds, `campus = ?`)
		args = append(args, filter.Campus)
	}
	if filter.Role != "" {
		conds = append(conds, `role = ?`)
		args = append(args, filter.Role)
	}
	if filter.IsActive != nil {
		conds = append(conds, `is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if len(filter.ExcludeIDs) > 0 {
		conds = append(conds, `id NOT IN (?)`)
		args = append(args, filter.ExcludeIDs)
	}

	users := make([]user.User, 0)
	q := `SELECT ` + userColumns + ` FROM users` + whereClause(conds) + ` ORDER BY name`
	if err := selectIn(ctx, r.getExec(exec), &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (r userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	res, err := execute(ctx, r.getExec(exec),
		`UPDATE users SET name = ?, email = ?, phone = ?, avatar = ?, campus = ?, role = ?, is_active = ?,
		password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`,
		usr.Name, usr.Email, usr.Phone, usr.Avatar, usr.Campus, usr.Role, usr.IsActive,
		usr.PasswordHash, usr.UpdatedAt.UTC(), usr.LastLogin, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = mustAffect(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (r userRepository) SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	_, err := execute(ctx, r.getExec(exec), `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	return errors.Wrap(err, "setting last login")
}
