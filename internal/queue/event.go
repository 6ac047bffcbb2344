// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingEvent is published whenever a booking is created or changes
// status.  It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingEvent struct {
    Event         string  `json:"event"`        // "created", "status_changed", "report_uploaded"
    BookingKind   string  `json:"booking_kind"` // "appointment" or "test_booking"
    BookingID     uint64  `json:"booking_id"`
    PatientID     uint64  `json:"patient_id"`
    SubjectID     uint64  `json:"subject_id"` // doctor or lab id
    Status        string  `json:"status"`
    PaymentStatus string  `json:"payment_status"`
    Amount        float64 `json:"amount"`
    OccurredAt    string  `json:"occurred_at"`
}
