package model

import "time"

// Doctor represents a practitioner listing in the `doctors` table.  The
// Rating and RatingCount columns are denormalized aggregates maintained by
// the review flow: Rating always equals the arithmetic mean of all live
// reviews for the doctor.
type Doctor struct {
    ID          uint64    // doctors.id
    UserID      uint64    // doctors.user_id (operator account)
    FullName    string    // doctors.full_name
    Speciality  string    // doctors.speciality
    Fee         float64   // doctors.fee
    Rating      float64   // doctors.rating (mean of live reviews)
    RatingCount uint32    // doctors.rating_count
    CreatedAt   time.Time // doctors.created_at
    UpdatedAt   time.Time // doctors.updated_at
}

// Lab represents a diagnostic laboratory listing in the `labs` table.
// Rating semantics match Doctor.
type Lab struct {
    ID          uint64    // labs.id
    OwnerID     uint64    // labs.owner_id (operator account)
    Name        string    // labs.name
    Address     string    // labs.address
    Rating      float64   // labs.rating (mean of live reviews)
    RatingCount uint32    // labs.rating_count
    CreatedAt   time.Time // labs.created_at
    UpdatedAt   time.Time // labs.updated_at
}

// SubjectKind distinguishes the two reviewable/bookable subject tables.
type SubjectKind string

const (
    SubjectDoctor SubjectKind = "doctor"
    SubjectLab    SubjectKind = "lab"
)
