package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/queue"
	"github.com/careslot/careslot-api/internal/repository"
	queue_publisher "github.com/careslot/careslot-api/internal/service"
)

// TestBookingHandler serves the diagnostic-test order lifecycle.  It
// mirrors AppointmentHandler; the operator side is the lab (owner or
// staff) instead of the doctor, and labs additionally deliver reports.
type TestBookingHandler struct {
	Bookings *repository.TestBookingRepo
	Subjects *repository.SubjectRepo
}

func NewTestBookingHandler(b *repository.TestBookingRepo, s *repository.SubjectRepo) *TestBookingHandler {
	if b == nil || s == nil {
		panic("nil repository passed to NewTestBookingHandler")
	}
	return &TestBookingHandler{Bookings: b, Subjects: s}
}

// ----- DTOs -----

type createTestBookingReq struct {
	LabID       uint64       `json:"lab_id"`
	TestName    string       `json:"test_name"`
	ScheduledAt time.Time    `json:"scheduled_at"`
	Amount      model.Amount `json:"amount"`
}

type uploadReportReq struct {
	ReportURL string `json:"report_url"`
}

type testBookingResp struct {
	ID               uint64     `json:"id"`
	PatientID        uint64     `json:"patient_id"`
	LabID            uint64     `json:"lab_id"`
	TestName         string     `json:"test_name"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	Amount           float64    `json:"amount"`
	PaymentRef       *string    `json:"payment_ref,omitempty"`
	ReportURL        *string    `json:"report_url,omitempty"`
	ReportUploadedAt *time.Time `json:"report_uploaded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toTestBookingResp(b model.TestBooking) testBookingResp {
	return testBookingResp{
		ID: b.ID, PatientID: b.PatientID, LabID: b.LabID, TestName: b.TestName,
		Status: string(b.Status), PaymentStatus: string(b.PaymentStatus),
		ScheduledAt: b.ScheduledAt, Amount: b.Amount, PaymentRef: b.PaymentRef,
		ReportURL: b.ReportURL, ReportUploadedAt: b.ReportUploadedAt,
		CreatedAt: b.CreatedAt,
	}
}

func publishTestBookingEvent(event string, b model.TestBooking) {
	ev := queue.BookingEvent{
		Event:         event,
		BookingKind:   "test_booking",
		BookingID:     b.ID,
		PatientID:     b.PatientID,
		SubjectID:     b.LabID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Amount:        b.Amount,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishBookingEvent(ctx, ev)
	}()
}

// canActOn decides whether the caller may read or mutate the booking: the
// owning patient, an admin, or the servicing lab's operator side
// (LAB_OWNER must own the lab; STAFF accounts act for any lab).
func (h *TestBookingHandler) canActOn(ctx context.Context, b model.TestBooking, userID uint64, role model.Role) (bool, error) {
	if b.PatientID == userID || role.In(model.RoleAdmin, model.RoleStaff) {
		return true, nil
	}
	if role == model.RoleLabOwner {
		operator, err := h.Subjects.OperatorUserID(ctx, model.SubjectLab, b.LabID)
		if err != nil && !errors.Is(err, repository.ErrSubjectNotFound) {
			return false, err
		}
		return err == nil && operator == userID, nil
	}
	return false, nil
}

// canServe is the stricter operator-only predicate used for report
// uploads: the owning patient has no business delivering lab results.
func (h *TestBookingHandler) canServe(ctx context.Context, b model.TestBooking, userID uint64, role model.Role) (bool, error) {
	if role.In(model.RoleAdmin, model.RoleStaff) {
		return true, nil
	}
	if role == model.RoleLabOwner {
		operator, err := h.Subjects.OperatorUserID(ctx, model.SubjectLab, b.LabID)
		if err != nil && !errors.Is(err, repository.ErrSubjectNotFound) {
			return false, err
		}
		return err == nil && operator == userID, nil
	}
	return false, nil
}

// Create handles POST /v1/test-bookings.
func (h *TestBookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTestBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.LabID == 0 || req.TestName == "" || req.ScheduledAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lab_id, test_name and scheduled_at are required"})
	}
	if req.Amount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Subjects.Exists(ctx, model.SubjectLab, req.LabID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lab not found"})
	}

	ref := uuid.NewString()
	b := model.TestBooking{
		PatientID:   userID,
		LabID:       req.LabID,
		TestName:    req.TestName,
		ScheduledAt: req.ScheduledAt.UTC(),
		Amount:      float64(req.Amount),
		PaymentRef:  &ref,
	}
	if err := h.Bookings.Create(ctx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create test booking failed"})
	}
	publishTestBookingEvent("created", b)
	return c.JSON(http.StatusCreated, toTestBookingResp(b))
}

// List handles GET /v1/test-bookings.  Patients see their own orders; a
// lab owner sees orders addressed to their lab.
func (h *TestBookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var items []model.TestBooking
	if getRole(c) == model.RoleLabOwner {
		labID, err := h.Subjects.LabIDForOwner(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrSubjectNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "no lab for this account"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		items, err = h.Bookings.ListByLab(ctx, labID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	} else {
		items, err = h.Bookings.ListByPatient(ctx, userID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	out := make([]testBookingResp, 0, len(items))
	for _, b := range items {
		out = append(out, toTestBookingResp(b))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/test-bookings/:id.
func (h *TestBookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "test booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	allowed, err := h.canActOn(ctx, b, userID, getRole(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, toTestBookingResp(b))
}

// UpdateStatus handles PATCH /v1/test-bookings/:id/status.
func (h *TestBookingHandler) UpdateStatus(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test booking id"})
	}
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Status == nil && req.PaymentStatus == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	upd := repository.BookingUpdate{}
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

// Cancel handles POST /v1/test-bookings/:id/cancel.
func (h *TestBookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test booking id"})
	}
	cancelled := model.StatusCancelled
	return h.applyUpdate(c, id, userID, repository.BookingUpdate{Status: &cancelled})
}

func (h *TestBookingHandler) applyUpdate(c echo.Context, id, userID uint64, upd repository.BookingUpdate) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "test booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	allowed, err := h.canActOn(ctx, b, userID, getRole(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updated, err := h.Bookings.UpdateFields(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "test booking not found"})
		case errors.Is(err, repository.ErrIllegalTransition):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "booking already completed or cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	publishTestBookingEvent("status_changed", updated)
	return c.JSON(http.StatusOK, toTestBookingResp(updated))
}

// UploadReport handles POST /v1/test-bookings/:id/report.  Restricted to
// the servicing lab side (lab owner, staff or admin).  Delivering a report
// completes the booking as a side effect.
func (h *TestBookingHandler) UploadReport(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test booking id"})
	}
	var req uploadReportReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if u, err := url.ParseRequestURI(req.ReportURL); err != nil || u.Scheme == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "report_url must be a valid URL"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "test booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	allowed, err := h.canServe(ctx, b, userID, getRole(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updated, err := h.Bookings.AttachReport(ctx, id, req.ReportURL, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "test booking not found"})
		case errors.Is(err, repository.ErrIllegalTransition):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "cannot attach report to a cancelled booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "attach report failed"})
	}
	publishTestBookingEvent("report_uploaded", updated)
	return c.JSON(http.StatusOK, toTestBookingResp(updated))
}
