package repository

import (
	"context"
	"database/sql"

	"github.com/careslot/careslot-api/internal/model"
)

// ReviewRepo persists reviews and recomputes subject rating aggregates.
// Reviews are append-only: no update or delete path exists.
type ReviewRepo struct{ db *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// DB exposes the underlying handle so the review flow can run the insert
// and the aggregate write in one transaction.
func (r *ReviewRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a review within the scope of an existing transaction
// and populates the generated ID and timestamp on the record.
func (r *ReviewRepo) CreateTx(ctx context.Context, tx *sql.Tx, rev *model.Review) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reviews (user_id, subject_kind, subject_id, rating, text) VALUES (?,?,?,?,?)",
		rev.UserID, string(rev.SubjectKind), rev.SubjectID, rev.Rating, rev.Text)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rev.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		"SELECT created_at FROM reviews WHERE id=?", rev.ID).Scan(&rev.CreatedAt)
}

// MeanForSubjectTx recomputes the arithmetic mean and count over all live
// reviews for a subject, inside the caller's transaction.  Recomputing
// from scratch rather than accumulating a delta keeps the aggregate
// self-correcting against any prior drift; review volume per subject is
// small enough that the full read is cheap.  Running inside the same
// transaction as the insert means the mean always includes the new row.
func (r *ReviewRepo) MeanForSubjectTx(ctx context.Context, tx *sql.Tx, kind model.SubjectKind, subjectID uint64) (float64, uint32, error) {
	var (
		mean  sql.NullFloat64
		count uint32
	)
	err := tx.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM reviews WHERE subject_kind=? AND subject_id=?",
		string(kind), subjectID).Scan(&mean, &count)
	if err != nil {
		return 0, 0, err
	}
	if !mean.Valid {
		return 0, 0, nil
	}
	return mean.Float64, count, nil
}

// ListBySubject returns all reviews for a subject, newest first.
func (r *ReviewRepo) ListBySubject(ctx context.Context, kind model.SubjectKind, subjectID uint64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,user_id,subject_kind,subject_id,rating,text,created_at FROM reviews WHERE subject_kind=? AND subject_id=? ORDER BY created_at DESC",
		string(kind), subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Review, 0)
	for rows.Next() {
		var (
			rev  model.Review
			kind string
		)
		if err := rows.Scan(&rev.ID, &rev.UserID, &kind, &rev.SubjectID, &rev.Rating, &rev.Text, &rev.CreatedAt); err != nil {
			return nil, err
		}
		rev.SubjectKind = model.SubjectKind(kind)
		out = append(out, rev)
	}
	return out, rows.Err()
}
