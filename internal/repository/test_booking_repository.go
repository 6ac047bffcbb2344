package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/careslot/careslot-api/internal/model"
)

// TestBookingRepo provides CRUD operations for diagnostic-test orders.
// The lifecycle mirrors appointments; the extra report columns are written
// by the lab when results are delivered.
type TestBookingRepo struct{ db *sql.DB }

func NewTestBookingRepo(db *sql.DB) *TestBookingRepo { return &TestBookingRepo{db: db} }

const testBookingColumns = "id,patient_id,lab_id,test_name,status,payment_status,scheduled_at,amount,payment_ref,report_url,report_uploaded_at,created_at,updated_at"

func scanTestBooking(scan func(...interface{}) error) (model.TestBooking, error) {
	var (
		b          model.TestBooking
		status     string
		payStatus  string
		paymentRef sql.NullString
		reportURL  sql.NullString
		reportAt   sql.NullTime
	)
	err := scan(&b.ID, &b.PatientID, &b.LabID, &b.TestName, &status, &payStatus,
		&b.ScheduledAt, &b.Amount, &paymentRef, &reportURL, &reportAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.TestBooking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payStatus)
	if paymentRef.Valid {
		p := paymentRef.String
		b.PaymentRef = &p
	}
	if reportURL.Valid {
		u := reportURL.String
		b.ReportURL = &u
	}
	if reportAt.Valid {
		t := reportAt.Time
		b.ReportUploadedAt = &t
	}
	return b, nil
}

// Create inserts a new test booking with status BOOKED and payment status
// PENDING, then reads the full row back.  The caller verifies the lab
// exists first.
func (r *TestBookingRepo) Create(ctx context.Context, b *model.TestBooking) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO test_bookings (patient_id, lab_id, test_name, status, payment_status, scheduled_at, amount, payment_ref)
		 VALUES (?,?,?,?,?,?,?,?)`,
		b.PatientID, b.LabID, b.TestName, string(model.StatusBooked), string(model.PaymentPending),
		b.ScheduledAt.UTC(), b.Amount, b.PaymentRef)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	got, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// GetByID fetches one test booking.  Returns ErrNotFound when absent.
func (r *TestBookingRepo) GetByID(ctx context.Context, id uint64) (model.TestBooking, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+testBookingColumns+" FROM test_bookings WHERE id=? LIMIT 1", id)
	b, err := scanTestBooking(row.Scan)
	if err == sql.ErrNoRows {
		return model.TestBooking{}, ErrNotFound
	}
	return b, err
}

// ListByPatient returns all test bookings created by the given patient,
// newest first.
func (r *TestBookingRepo) ListByPatient(ctx context.Context, patientID uint64) ([]model.TestBooking, error) {
	return r.list(ctx, "patient_id", patientID)
}

// ListByLab returns all test bookings addressed to the given lab, newest
// first.
func (r *TestBookingRepo) ListByLab(ctx context.Context, labID uint64) ([]model.TestBooking, error) {
	return r.list(ctx, "lab_id", labID)
}

func (r *TestBookingRepo) list(ctx context.Context, col string, id uint64) ([]model.TestBooking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+testBookingColumns+" FROM test_bookings WHERE "+col+"=? ORDER BY created_at DESC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TestBooking, 0)
	for rows.Next() {
		b, err := scanTestBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateFields applies a partial update inside a transaction, locking the
// row first and enforcing the lifecycle rule against the locked status.
// Semantics match AppointmentRepo.UpdateFields.
func (r *TestBookingRepo) UpdateFields(ctx context.Context, id uint64, upd BookingUpdate) (model.TestBooking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TestBooking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM test_bookings WHERE id=? LIMIT 1 FOR UPDATE", id).Scan(&current)
	if err == sql.ErrNoRows {
		return model.TestBooking{}, ErrNotFound
	}
	if err != nil {
		return model.TestBooking{}, err
	}
	if upd.Status != nil && !model.BookingStatus(current).CanTransitionTo(*upd.Status) {
		return model.TestBooking{}, ErrIllegalTransition
	}

	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if upd.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*upd.Status))
	}
	if upd.PaymentStatus != nil {
		sets = append(sets, "payment_status=?")
		args = append(args, string(*upd.PaymentStatus))
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx,
			"UPDATE test_bookings SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
			return model.TestBooking{}, err
		}
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+testBookingColumns+" FROM test_bookings WHERE id=? LIMIT 1", id)
	b, err := scanTestBooking(row.Scan)
	if err != nil {
		return model.TestBooking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.TestBooking{}, err
	}
	committed = true
	return b, nil
}

// AttachReport stores the delivered report URL and timestamp and forces
// the booking to COMPLETED, all inside one transaction.  Completing an
// already COMPLETED booking is allowed (a lab may re-upload a corrected
// report); a CANCELLED booking cannot receive a report.
func (r *TestBookingRepo) AttachReport(ctx context.Context, id uint64, reportURL string, uploadedAt time.Time) (model.TestBooking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TestBooking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM test_bookings WHERE id=? LIMIT 1 FOR UPDATE", id).Scan(&current)
	if err == sql.ErrNoRows {
		return model.TestBooking{}, ErrNotFound
	}
	if err != nil {
		return model.TestBooking{}, err
	}
	if model.BookingStatus(current) == model.StatusCancelled {
		return model.TestBooking{}, ErrIllegalTransition
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE test_bookings SET report_url=?, report_uploaded_at=?, status=? WHERE id=?",
		reportURL, uploadedAt.UTC(), string(model.StatusCompleted), id); err != nil {
		return model.TestBooking{}, err
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+testBookingColumns+" FROM test_bookings WHERE id=? LIMIT 1", id)
	b, err := scanTestBooking(row.Scan)
	if err != nil {
		return model.TestBooking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.TestBooking{}, err
	}
	committed = true
	return b, nil
}
