package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/careslot/careslot-api/internal/model"
)

// AppointmentRepo provides CRUD operations for appointments.  All
// timestamp columns are stored in UTC.  Rows are never deleted;
// cancellation is a status write.
type AppointmentRepo struct{ db *sql.DB }

func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

// DB exposes the underlying handle for handlers that need to open a
// transaction spanning multiple repositories.
func (r *AppointmentRepo) DB() *sql.DB { return r.db }

const appointmentColumns = "id,patient_id,doctor_id,status,payment_status,scheduled_at,reason,notes,amount,payment_ref,created_at,updated_at"

func scanAppointment(scan func(...interface{}) error) (model.Appointment, error) {
	var (
		a          model.Appointment
		status     string
		payStatus  string
		notes      sql.NullString
		paymentRef sql.NullString
	)
	err := scan(&a.ID, &a.PatientID, &a.DoctorID, &status, &payStatus,
		&a.ScheduledAt, &a.Reason, &notes, &a.Amount, &paymentRef,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.BookingStatus(status)
	a.PaymentStatus = model.PaymentStatus(payStatus)
	if notes.Valid {
		n := notes.String
		a.Notes = &n
	}
	if paymentRef.Valid {
		p := paymentRef.String
		a.PaymentRef = &p
	}
	return a, nil
}

// Create inserts a new appointment with status BOOKED and payment status
// PENDING, then reads the full row back to populate timestamps.  The
// caller is responsible for verifying that the doctor exists first.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO appointments (patient_id, doctor_id, status, payment_status, scheduled_at, reason, amount, payment_ref)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.PatientID, a.DoctorID, string(model.StatusBooked), string(model.PaymentPending),
		a.ScheduledAt.UTC(), a.Reason, a.Amount, a.PaymentRef)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = got
	return nil
}

// GetByID fetches one appointment.  Returns ErrNotFound when absent.
func (r *AppointmentRepo) GetByID(ctx context.Context, id uint64) (model.Appointment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE id=? LIMIT 1", id)
	a, err := scanAppointment(row.Scan)
	if err == sql.ErrNoRows {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

// ListByPatient returns all appointments created by the given patient,
// newest first.
func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID uint64) ([]model.Appointment, error) {
	return r.list(ctx, "patient_id", patientID)
}

// ListByDoctor returns all appointments addressed to the given doctor,
// newest first.
func (r *AppointmentRepo) ListByDoctor(ctx context.Context, doctorID uint64) ([]model.Appointment, error) {
	return r.list(ctx, "doctor_id", doctorID)
}

func (r *AppointmentRepo) list(ctx context.Context, col string, id uint64) ([]model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE "+col+"=? ORDER BY created_at DESC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// BookingUpdate carries the optional fields of a partial status update.
// Nil pointers leave the corresponding column untouched.
type BookingUpdate struct {
	Status        *model.BookingStatus
	PaymentStatus *model.PaymentStatus
	Notes         *string
}

// UpdateFields applies a partial update inside a transaction.  The current
// row is locked (FOR UPDATE) so concurrent writers to the same booking are
// serialized by the storage layer, and the lifecycle rule is enforced
// against the locked status: moves out of a terminal state return
// ErrIllegalTransition.  Returns ErrNotFound when the row is absent and
// the updated row on success.
func (r *AppointmentRepo) UpdateFields(ctx context.Context, id uint64, upd BookingUpdate) (model.Appointment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM appointments WHERE id=? LIMIT 1 FOR UPDATE", id).Scan(&current)
	if err == sql.ErrNoRows {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	if upd.Status != nil && !model.BookingStatus(current).CanTransitionTo(*upd.Status) {
		return model.Appointment{}, ErrIllegalTransition
	}

	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if upd.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*upd.Status))
	}
	if upd.PaymentStatus != nil {
		sets = append(sets, "payment_status=?")
		args = append(args, string(*upd.PaymentStatus))
	}
	if upd.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *upd.Notes)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx,
			"UPDATE appointments SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
			return model.Appointment{}, err
		}
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE id=? LIMIT 1", id)
	a, err := scanAppointment(row.Scan)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Appointment{}, err
	}
	committed = true
	return a, nil
}
