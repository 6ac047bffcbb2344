package model

import (
    "encoding/json"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// BookingStatus is the lifecycle state shared by appointments and test
// bookings.  BOOKED is the only initial state; COMPLETED and CANCELLED are
// terminal and never transition further.
type BookingStatus string

const (
    StatusBooked    BookingStatus = "BOOKED"
    StatusCompleted BookingStatus = "COMPLETED"
    StatusCancelled BookingStatus = "CANCELLED"
)

// ParseBookingStatus normalises an input string to a canonical status.
// It returns false for anything outside the enum.
func ParseBookingStatus(s string) (BookingStatus, bool) {
    switch strings.ToUpper(strings.TrimSpace(s)) {
    case "BOOKED":
        return StatusBooked, true
    case "COMPLETED":
        return StatusCompleted, true
    case "CANCELLED", "CANCELED":
        return StatusCancelled, true
    }
    return "", false
}

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
    return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.  Writing the current status again is allowed so that
// partial updates which only touch payment state pass through.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
    if s == next {
        return true
    }
    return s == StatusBooked && (next == StatusCompleted || next == StatusCancelled)
}

// PaymentStatus tracks whether a booking has been paid through the
// external payment collaborator.
type PaymentStatus string

const (
    PaymentPending PaymentStatus = "PENDING"
    PaymentPaid    PaymentStatus = "PAID"
)

// ParsePaymentStatus normalises an input string to a canonical payment
// status, returning false for unknown values.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
    switch strings.ToUpper(strings.TrimSpace(s)) {
    case "PENDING":
        return PaymentPending, true
    case "PAID":
        return PaymentPaid, true
    }
    return "", false
}

// Amount is a monetary value that tolerates both JSON numbers and numeric
// strings on input ("199.50" and 199.5 both decode to 199.5).  Clients of
// the mobile apps historically sent amounts as strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
    s := strings.TrimSpace(string(data))
    if len(s) >= 2 && s[0] == '"' {
        var str string
        if err := json.Unmarshal(data, &str); err != nil {
            return err
        }
        s = strings.TrimSpace(str)
    }
    if s == "" || s == "null" {
        *a = 0
        return nil
    }
    f, err := strconv.ParseFloat(s, 64)
    if err != nil {
        return fmt.Errorf("invalid amount %q", s)
    }
    *a = Amount(f)
    return nil
}

// MarshalJSON renders the amount as a plain JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
    return json.Marshal(float64(a))
}

// Appointment records a patient's booking with a doctor.
//
// Fields:
//  ID            – primary key identifier.
//  PatientID     – user who made the booking; immutable after creation.
//  DoctorID      – doctor being booked.
//  Status        – lifecycle state (BOOKED, COMPLETED, CANCELLED).
//  PaymentStatus – payment state (PENDING, PAID).
//  ScheduledAt   – agreed consultation time (UTC).
//  Reason        – patient-supplied reason for the visit.
//  Notes         – free-form notes written by the doctor (nullable).
//  Amount        – consultation fee.
//  PaymentRef    – external payment reference (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Appointment struct {
    ID            uint64        // appointments.id
    PatientID     uint64        // appointments.patient_id
    DoctorID      uint64        // appointments.doctor_id
    Status        BookingStatus // appointments.status
    PaymentStatus PaymentStatus // appointments.payment_status
    ScheduledAt   time.Time     // appointments.scheduled_at
    Reason        string        // appointments.reason
    Notes         *string       // appointments.notes (nullable)
    Amount        float64       // appointments.amount
    PaymentRef    *string       // appointments.payment_ref (nullable)
    CreatedAt     time.Time     // appointments.created_at
    UpdatedAt     time.Time     // appointments.updated_at
}

// TestBooking records a patient's diagnostic-test order with a lab.  It
// shares the appointment lifecycle and additionally carries the delivered
// report, if any.  Uploading a report completes the booking.
type TestBooking struct {
    ID               uint64        // test_bookings.id
    PatientID        uint64        // test_bookings.patient_id
    LabID            uint64        // test_bookings.lab_id
    TestName         string        // test_bookings.test_name
    Status           BookingStatus // test_bookings.status
    PaymentStatus    PaymentStatus // test_bookings.payment_status
    ScheduledAt      time.Time     // test_bookings.scheduled_at
    Amount           float64       // test_bookings.amount
    PaymentRef       *string       // test_bookings.payment_ref (nullable)
    ReportURL        *string       // test_bookings.report_url (nullable)
    ReportUploadedAt *time.Time    // test_bookings.report_uploaded_at (nullable)
    CreatedAt        time.Time     // test_bookings.created_at
    UpdatedAt        time.Time     // test_bookings.updated_at
}
