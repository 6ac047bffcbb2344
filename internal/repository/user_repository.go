package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/utils"
)

// UserRepo provides persistence for the users table, including the single
// stored refresh-secret hash that backs the session model.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,phone,full_name,password_hash,role,refresh_token_hash,last_login_at,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		phone     sql.NullString
		refresh   sql.NullString
		lastLogin sql.NullTime
		role      string
	)
	err := row.Scan(&u.ID, &u.Email, &phone, &u.FullName, &u.PasswordHash, &role,
		&refresh, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	if refresh.Valid {
		h := refresh.String
		u.RefreshTokenHash = &h
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// Create inserts a user and returns its ID.  Email is normalized to
// lower case.  Duplicate email or phone rows are reported through the
// ErrEmailExists / ErrPhoneExists sentinels (MySQL error 1062 carries the
// violated key name in its message).
func (r *UserRepo) Create(ctx context.Context, email string, phone *string, fullName, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, phone, full_name, password_hash, role) VALUES (?,?,?,?,?)",
		email, phone, fullName, hash, role.String())
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "phone") {
				return 0, ErrPhoneExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.  Returns ErrNotFound when
// no such user exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.  Returns ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// SetRefreshHash stores a new refresh-secret hash for the user,
// unconditionally replacing whatever was there.  Used by login and signup:
// the overwrite is what enforces the single-live-session model.  It also
// stamps last_login_at.
func (r *UserRepo) SetRefreshHash(ctx context.Context, userID uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, last_login_at=UTC_TIMESTAMP() WHERE id=?",
		hash, userID)
	return err
}

// RotateRefreshHash atomically swaps the stored refresh hash from oldHash
// to newHash.  The WHERE clause doubles as a compare-and-swap: when two
// concurrent refreshes present the same secret, exactly one UPDATE matches
// a row and the loser gets ErrInvalidRefresh.  The matched user's ID is
// read back inside the same transaction.
func (r *UserRepo) RotateRefreshHash(ctx context.Context, oldHash, newHash string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var userID uint64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE refresh_token_hash=? LIMIT 1 FOR UPDATE",
		oldHash).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, ErrInvalidRefresh
	}
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=? AND refresh_token_hash=?",
		newHash, userID, oldHash)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInvalidRefresh
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return userID, nil
}

// ClearRefreshHash wipes the stored refresh hash for the user.  The write
// is unconditional, which makes logout idempotent: clearing an already
// empty hash succeeds and leaves the same end state.
func (r *UserRepo) ClearRefreshHash(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL WHERE id=?", userID)
	return err
}

// UpdateProfile applies a partial update to the user's profile fields.
// Nil pointers leave the corresponding column untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID uint64, fullName, phone *string) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if fullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *fullName)
	}
	if phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *phone)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrPhoneExists
	}
	return err
}
