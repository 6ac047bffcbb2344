package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/handler"
	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/repository"
)

// callAs runs a handler with an authenticated identity and an optional
// :id path parameter, mirroring what JWTAuth and the router set up.
func callAs(t *testing.T, env *env, h echo.HandlerFunc, method string, body interface{}, userID uint64, role model.Role, id uint64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role.String())
	if id != 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatUint(id, 10))
	}
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

// registerUser creates an account through the auth handler and returns
// its user ID.
func registerUser(t *testing.T, env *env, role string) uint64 {
	t.Helper()
	rec, _ := register(t, env, role)
	uid, _ := decodeAuthResp(t, rec)
	return uid
}

// createDoctor inserts a doctor listing operated by a fresh DOCTOR
// account and returns (doctorID, operatorUserID).
func createDoctor(t *testing.T, env *env) (uint64, uint64) {
	t.Helper()
	operator := registerUser(t, env, "doctor")
	res, err := env.db.ExecContext(context.Background(),
		"INSERT INTO doctors (user_id, full_name, speciality, fee) VALUES (?,?,?,?)",
		operator, "Dr. Integration", "cardiology", 150.0)
	if err != nil {
		t.Fatalf("insert doctor: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("doctor id: %v", err)
	}
	return uint64(id), operator
}

// createLab inserts a lab owned by a fresh LAB_OWNER account and returns
// (labID, ownerUserID).
func createLab(t *testing.T, env *env) (uint64, uint64) {
	t.Helper()
	owner := registerUser(t, env, "lab_owner")
	res, err := env.db.ExecContext(context.Background(),
		"INSERT INTO labs (owner_id, name, address) VALUES (?,?,?)",
		owner, "Integration Diagnostics", "1 Test Way")
	if err != nil {
		t.Fatalf("insert lab: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("lab id: %v", err)
	}
	return uint64(id), owner
}

func bookingHandlers(env *env) (*handler.AppointmentHandler, *handler.TestBookingHandler, *handler.ReviewHandler, *repository.AppointmentRepo) {
	appts := repository.NewAppointmentRepo(env.db)
	tests := repository.NewTestBookingRepo(env.db)
	reviews := repository.NewReviewRepo(env.db)
	return handler.NewAppointmentHandler(appts, env.subjects),
		handler.NewTestBookingHandler(tests, env.subjects),
		handler.NewReviewHandler(reviews, env.subjects),
		appts
}

func TestCreateAppointmentStringAmount(t *testing.T) {
	env := setup(t)
	ah, _, _, _ := bookingHandlers(env)
	doctorID, _ := createDoctor(t, env)
	patient := registerUser(t, env, "patient")

	rec := callAs(t, env, ah.Create, http.MethodPost, map[string]interface{}{
		"doctor_id":    doctorID,
		"scheduled_at": "2026-09-15T10:00:00Z",
		"reason":       "checkup",
		"amount":       "199.50", // string numeric from legacy clients
	}, patient, model.RolePatient, 0)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID     uint64  `json:"id"`
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "BOOKED" {
		t.Errorf("status = %s, want BOOKED", resp.Status)
	}
	if math.Abs(resp.Amount-199.5) > 1e-9 {
		t.Errorf("amount = %v, want 199.5", resp.Amount)
	}
}

func TestCreateAppointmentUnknownDoctor(t *testing.T) {
	env := setup(t)
	ah, _, _, appts := bookingHandlers(env)
	patient := registerUser(t, env, "patient")

	rec := callAs(t, env, ah.Create, http.MethodPost, map[string]interface{}{
		"doctor_id":    uint64(999999999),
		"scheduled_at": "2026-09-15T10:00:00Z",
		"reason":       "checkup",
		"amount":       100,
	}, patient, model.RolePatient, 0)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	// nothing was persisted for this patient
	list, err := appts.ListByPatient(context.Background(), patient)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no appointments, got %d", len(list))
	}
}

func createAppointment(t *testing.T, env *env, ah *handler.AppointmentHandler, patient, doctorID uint64) uint64 {
	t.Helper()
	rec := callAs(t, env, ah.Create, http.MethodPost, map[string]interface{}{
		"doctor_id":    doctorID,
		"scheduled_at": "2026-09-15T10:00:00Z",
		"reason":       "checkup",
		"amount":       120,
	}, patient, model.RolePatient, 0)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create appointment: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.ID
}

func TestUpdateStatusAuthorization(t *testing.T) {
	env := setup(t)
	ah, _, _, appts := bookingHandlers(env)
	doctorID, operator := createDoctor(t, env)
	patient := registerUser(t, env, "patient")
	stranger := registerUser(t, env, "patient")
	apptID := createAppointment(t, env, ah, patient, doctorID)

	// a non-owner non-operator is rejected and the row stays intact
	rec := callAs(t, env, ah.UpdateStatus, http.MethodPatch, map[string]string{
		"status": "completed",
	}, stranger, model.RolePatient, apptID)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger update: status = %d, want 403", rec.Code)
	}
	a, err := appts.GetByID(context.Background(), apptID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if a.Status != model.StatusBooked {
		t.Errorf("booking mutated by forbidden request: %s", a.Status)
	}

	// the servicing doctor may complete it, lower-case input included
	rec = callAs(t, env, ah.UpdateStatus, http.MethodPatch, map[string]string{
		"status": "completed",
	}, operator, model.RoleDoctor, apptID)
	if rec.Code != http.StatusOK {
		t.Fatalf("doctor update: status = %d body=%s", rec.Code, rec.Body.String())
	}
	a, err = appts.GetByID(context.Background(), apptID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if a.Status != model.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", a.Status)
	}
}

func TestCancelFromTerminalRejected(t *testing.T) {
	env := setup(t)
	ah, _, _, _ := bookingHandlers(env)
	doctorID, operator := createDoctor(t, env)
	patient := registerUser(t, env, "patient")
	apptID := createAppointment(t, env, ah, patient, doctorID)

	rec := callAs(t, env, ah.UpdateStatus, http.MethodPatch, map[string]string{
		"status": "COMPLETED",
	}, operator, model.RoleDoctor, apptID)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d", rec.Code)
	}

	// terminal states are final, even for the owner
	rec = callAs(t, env, ah.Cancel, http.MethodPost, nil, patient, model.RolePatient, apptID)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("cancel completed: status = %d, want 422", rec.Code)
	}
}

func TestUpdateStatusMissingBooking(t *testing.T) {
	env := setup(t)
	ah, _, _, _ := bookingHandlers(env)
	admin := registerUser(t, env, "admin")

	rec := callAs(t, env, ah.UpdateStatus, http.MethodPatch, map[string]string{
		"status": "CANCELLED",
	}, admin, model.RoleAdmin, 999999999)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUploadReportCompletesBooking(t *testing.T) {
	env := setup(t)
	_, th, _, _ := bookingHandlers(env)
	labID, owner := createLab(t, env)
	patient := registerUser(t, env, "patient")

	rec := callAs(t, env, th.Create, http.MethodPost, map[string]interface{}{
		"lab_id":       labID,
		"test_name":    "CBC",
		"scheduled_at": "2026-09-16T08:00:00Z",
		"amount":       "45.00",
	}, patient, model.RolePatient, 0)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// the patient may not deliver results
	rec = callAs(t, env, th.UploadReport, http.MethodPost, map[string]string{
		"report_url": "https://reports.test.local/cbc.pdf",
	}, patient, model.RolePatient, created.ID)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient upload: status = %d, want 403", rec.Code)
	}

	rec = callAs(t, env, th.UploadReport, http.MethodPost, map[string]string{
		"report_url": "https://reports.test.local/cbc.pdf",
	}, owner, model.RoleLabOwner, created.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner upload: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Status    string  `json:"status"`
		ReportURL *string `json:"report_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != "COMPLETED" {
		t.Errorf("status = %s, want COMPLETED (report delivery completes)", updated.Status)
	}
	if updated.ReportURL == nil || *updated.ReportURL == "" {
		t.Error("report_url missing after upload")
	}
}

func TestReviewAggregateMean(t *testing.T) {
	env := setup(t)
	_, _, rh, _ := bookingHandlers(env)
	doctorID, _ := createDoctor(t, env)

	ratings := []float64{5, 3, 4, 2, 4.5}
	var sum float64
	for _, r := range ratings {
		patient := registerUser(t, env, "patient")
		rec := callAs(t, env, rh.CreateForDoctor, http.MethodPost, map[string]interface{}{
			"rating": r,
			"text":   "fine",
		}, patient, model.RolePatient, doctorID)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create review: status = %d body=%s", rec.Code, rec.Body.String())
		}
		sum += r
	}
	want := sum / float64(len(ratings))

	doc, err := env.subjects.GetDoctor(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("load doctor: %v", err)
	}
	if math.Abs(doc.Rating-want) > 1e-6 {
		t.Errorf("aggregate rating = %v, want %v", doc.Rating, want)
	}
	if doc.RatingCount != uint32(len(ratings)) {
		t.Errorf("rating count = %d, want %d", doc.RatingCount, len(ratings))
	}
}

func TestReviewAggregateConcurrent(t *testing.T) {
	env := setup(t)
	_, _, rh, _ := bookingHandlers(env)
	doctorID, _ := createDoctor(t, env)
	p1 := registerUser(t, env, "patient")
	p2 := registerUser(t, env, "patient")

	var wg sync.WaitGroup
	add := func(patient uint64, rating float64) {
		defer wg.Done()
		rec := callAs(t, env, rh.CreateForDoctor, http.MethodPost, map[string]interface{}{
			"rating": rating,
			"text":   "concurrent",
		}, patient, model.RolePatient, doctorID)
		if rec.Code != http.StatusCreated {
			t.Errorf("create review: status = %d body=%s", rec.Code, rec.Body.String())
		}
	}
	wg.Add(2)
	go add(p1, 4)
	go add(p2, 5)
	wg.Wait()

	doc, err := env.subjects.GetDoctor(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("load doctor: %v", err)
	}
	if math.Abs(doc.Rating-4.5) > 1e-6 {
		t.Errorf("aggregate = %v, want 4.5 regardless of interleaving", doc.Rating)
	}
}

func TestReviewRatingBounds(t *testing.T) {
	env := setup(t)
	_, _, rh, _ := bookingHandlers(env)
	doctorID, _ := createDoctor(t, env)
	patient := registerUser(t, env, "patient")

	for _, bad := range []float64{-1, 5.5} {
		rec := callAs(t, env, rh.CreateForDoctor, http.MethodPost, map[string]interface{}{
			"rating": bad,
		}, patient, model.RolePatient, doctorID)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("rating %v: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestReviewUnknownSubject(t *testing.T) {
	env := setup(t)
	_, _, rh, _ := bookingHandlers(env)
	patient := registerUser(t, env, "patient")

	rec := callAs(t, env, rh.CreateForLab, http.MethodPost, map[string]interface{}{
		"rating": 4,
	}, patient, model.RolePatient, 999999999)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
