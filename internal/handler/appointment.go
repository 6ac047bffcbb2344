package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/queue"
	"github.com/careslot/careslot-api/internal/repository"
	queue_publisher "github.com/careslot/careslot-api/internal/service"
)

// AppointmentHandler serves the appointment booking lifecycle.  All
// methods assume JWT authentication has already run; authorization against
// the loaded booking happens here, always after the existence check so a
// 403 confirms the row exists while a 404 never leaks ownership.
type AppointmentHandler struct {
	Appointments *repository.AppointmentRepo
	Subjects     *repository.SubjectRepo
}

func NewAppointmentHandler(a *repository.AppointmentRepo, s *repository.SubjectRepo) *AppointmentHandler {
	if a == nil || s == nil {
		panic("nil repository passed to NewAppointmentHandler")
	}
	return &AppointmentHandler{Appointments: a, Subjects: s}
}

// ----- DTOs -----

type createAppointmentReq struct {
	DoctorID    uint64       `json:"doctor_id"`
	ScheduledAt time.Time    `json:"scheduled_at"`
	Reason      string       `json:"reason"`
	Amount      model.Amount `json:"amount"`
}

type updateBookingReq struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	Notes         *string `json:"notes"`
}

type appointmentResp struct {
	ID            uint64    `json:"id"`
	PatientID     uint64    `json:"patient_id"`
	DoctorID      uint64    `json:"doctor_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Reason        string    `json:"reason"`
	Notes         *string   `json:"notes,omitempty"`
	Amount        float64   `json:"amount"`
	PaymentRef    *string   `json:"payment_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAppointmentResp(a model.Appointment) appointmentResp {
	return appointmentResp{
		ID: a.ID, PatientID: a.PatientID, DoctorID: a.DoctorID,
		Status: string(a.Status), PaymentStatus: string(a.PaymentStatus),
		ScheduledAt: a.ScheduledAt, Reason: a.Reason, Notes: a.Notes,
		Amount: a.Amount, PaymentRef: a.PaymentRef, CreatedAt: a.CreatedAt,
	}
}

// publishAppointmentEvent fires a booking event without blocking the
// request; broker outages are logged inside the publisher and ignored.
func publishAppointmentEvent(event string, a model.Appointment) {
	ev := queue.BookingEvent{
		Event:         event,
		BookingKind:   "appointment",
		BookingID:     a.ID,
		PatientID:     a.PatientID,
		SubjectID:     a.DoctorID,
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		Amount:        a.Amount,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishBookingEvent(ctx, ev)
	}()
}

// canActOn decides whether the caller may read or mutate the appointment:
// the owning patient, the servicing doctor, or an admin.
func (h *AppointmentHandler) canActOn(ctx context.Context, a model.Appointment, userID uint64, role model.Role) (bool, error) {
	if a.PatientID == userID || role == model.RoleAdmin {
		return true, nil
	}
	if role == model.RoleDoctor {
		operator, err := h.Subjects.OperatorUserID(ctx, model.SubjectDoctor, a.DoctorID)
		if err != nil && !errors.Is(err, repository.ErrSubjectNotFound) {
			return false, err
		}
		return err == nil && operator == userID, nil
	}
	return false, nil
}

// Create handles POST /v1/appointments.  Always creates the booking as
// BOOKED/PENDING for the calling user; the doctor must exist before
// anything is persisted.
func (h *AppointmentHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createAppointmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.DoctorID == 0 || req.ScheduledAt.IsZero() || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "doctor_id, scheduled_at and reason are required"})
	}
	if req.Amount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Subjects.Exists(ctx, model.SubjectDoctor, req.DoctorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "doctor not found"})
	}

	ref := uuid.NewString()
	a := model.Appointment{
		PatientID:   userID,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Reason:      req.Reason,
		Amount:      float64(req.Amount),
		PaymentRef:  &ref,
	}
	if err := h.Appointments.Create(ctx, &a); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create appointment failed"})
	}
	publishAppointmentEvent("created", a)
	return c.JSON(http.StatusCreated, toAppointmentResp(a))
}

// List handles GET /v1/appointments.  Patients see their own bookings;
// doctors see bookings addressed to their listing; admins see nothing
// special here and fall back to their own (empty) list.
func (h *AppointmentHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var items []model.Appointment
	if getRole(c) == model.RoleDoctor {
		doctorID, err := h.Subjects.DoctorIDForUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrSubjectNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "no doctor listing for this account"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		items, err = h.Appointments.ListByDoctor(ctx, doctorID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	} else {
		items, err = h.Appointments.ListByPatient(ctx, userID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	out := make([]appointmentResp, 0, len(items))
	for _, a := range items {
		out = append(out, toAppointmentResp(a))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/appointments/:id.
func (h *AppointmentHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	allowed, err := h.canActOn(ctx, a, userID, getRole(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, toAppointmentResp(a))
}

// UpdateStatus handles PATCH /v1/appointments/:id/status.  Only the fields
// present in the body are touched; status and payment_status strings are
// normalised to the canonical enum before storage.
func (h *AppointmentHandler) UpdateStatus(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Status == nil && req.PaymentStatus == nil && req.Notes == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	upd := repository.BookingUpdate{Notes: req.Notes}
	if req.Status != nil {
		st, ok := model.ParseBookingStatus(*req.Status)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		upd.Status = &st
	}
	if req.PaymentStatus != nil {
		ps, ok := model.ParsePaymentStatus(*req.PaymentStatus)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment status"})
		}
		upd.PaymentStatus = &ps
	}

	return h.applyUpdate(c, id, userID, upd)
}

// Cancel handles POST /v1/appointments/:id/cancel.  Equivalent to a status
// update to CANCELLED; cancelling an already terminal booking is rejected.
func (h *AppointmentHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	cancelled := model.StatusCancelled
	return h.applyUpdate(c, id, userID, repository.BookingUpdate{Status: &cancelled})
}

// applyUpdate authorizes and executes a partial update, mapping the
// repository sentinels to distinct responses.
func (h *AppointmentHandler) applyUpdate(c echo.Context, id, userID uint64, upd repository.BookingUpdate) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	allowed, err := h.canActOn(ctx, a, userID, getRole(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updated, err := h.Appointments.UpdateFields(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
		case errors.Is(err, repository.ErrIllegalTransition):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "booking already completed or cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	publishAppointmentEvent("status_changed", updated)
	return c.JSON(http.StatusOK, toAppointmentResp(updated))
}
