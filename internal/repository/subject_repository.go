package repository

import (
	"context"
	"database/sql"

	"github.com/careslot/careslot-api/internal/model"
)

// SubjectRepo provides lookups over the two bookable/reviewable subject
// tables (doctors and labs) and maintains their denormalized rating
// columns.  Both tables share the same aggregate shape so one repository
// serves both kinds.
type SubjectRepo struct{ DB *sql.DB }

func NewSubjectRepo(db *sql.DB) *SubjectRepo { return &SubjectRepo{DB: db} }

// table maps a subject kind to its backing table name.  Kinds come from a
// closed enum, never from request input, so interpolation is safe.
func table(kind model.SubjectKind) string {
	if kind == model.SubjectLab {
		return "labs"
	}
	return "doctors"
}

// Exists reports whether a subject row with the given ID exists.
func (r *SubjectRepo) Exists(ctx context.Context, kind model.SubjectKind, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM "+table(kind)+" WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetDoctor fetches a doctor listing by id.  Returns ErrSubjectNotFound
// when absent.
func (r *SubjectRepo) GetDoctor(ctx context.Context, id uint64) (model.Doctor, error) {
	var d model.Doctor
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,full_name,speciality,fee,rating,rating_count,created_at,updated_at FROM doctors WHERE id=? LIMIT 1",
		id).Scan(&d.ID, &d.UserID, &d.FullName, &d.Speciality, &d.Fee, &d.Rating, &d.RatingCount, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Doctor{}, ErrSubjectNotFound
	}
	return d, err
}

// GetLab fetches a lab listing by id.  Returns ErrSubjectNotFound when
// absent.
func (r *SubjectRepo) GetLab(ctx context.Context, id uint64) (model.Lab, error) {
	var l model.Lab
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,owner_id,name,address,rating,rating_count,created_at,updated_at FROM labs WHERE id=? LIMIT 1",
		id).Scan(&l.ID, &l.OwnerID, &l.Name, &l.Address, &l.Rating, &l.RatingCount, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Lab{}, ErrSubjectNotFound
	}
	return l, err
}

// OperatorUserID returns the user account that operates the subject: the
// doctor's linked user for doctors, the owner for labs.  Returns
// ErrSubjectNotFound when the subject is absent.
func (r *SubjectRepo) OperatorUserID(ctx context.Context, kind model.SubjectKind, id uint64) (uint64, error) {
	col := "user_id"
	if kind == model.SubjectLab {
		col = "owner_id"
	}
	var uid uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+col+" FROM "+table(kind)+" WHERE id=? LIMIT 1", id).Scan(&uid)
	if err == sql.ErrNoRows {
		return 0, ErrSubjectNotFound
	}
	return uid, err
}

// DoctorIDForUser returns the doctor listing operated by the given user
// account, or ErrSubjectNotFound when the user has no listing.
func (r *SubjectRepo) DoctorIDForUser(ctx context.Context, userID uint64) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM doctors WHERE user_id=? LIMIT 1", userID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrSubjectNotFound
	}
	return id, err
}

// LabIDForOwner returns the lab owned by the given user account, or
// ErrSubjectNotFound when the user owns no lab.
func (r *SubjectRepo) LabIDForOwner(ctx context.Context, userID uint64) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM labs WHERE owner_id=? LIMIT 1", userID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrSubjectNotFound
	}
	return id, err
}

// LockTx takes the subject's row lock inside the caller's transaction and
// reports whether the row exists.  Review writes lock the subject before
// recomputing its mean: concurrent reviews of the same subject then
// serialize, and each one's AVG snapshot starts after the previous commit,
// so the stored aggregate always matches the full live set.
func (r *SubjectRepo) LockTx(ctx context.Context, tx *sql.Tx, kind model.SubjectKind, id uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM "+table(kind)+" WHERE id=? FOR UPDATE", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateRatingTx writes the recomputed rating aggregate for a subject
// inside the caller's transaction.  It is always paired with the review
// insert and mean recomputation in ReviewRepo so both writes commit or
// roll back together.
func (r *SubjectRepo) UpdateRatingTx(ctx context.Context, tx *sql.Tx, kind model.SubjectKind, id uint64, rating float64, count uint32) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE "+table(kind)+" SET rating=?, rating_count=? WHERE id=?",
		rating, count, id)
	return err
}
