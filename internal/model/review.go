package model

import "time"

// Review is an append-only rating left by a user for a doctor or a lab.
// Ratings are constrained to the closed interval [0,5].  Inserting a
// review triggers recomputation of the subject's denormalized rating.
type Review struct {
    ID          uint64      // reviews.id
    UserID      uint64      // reviews.user_id
    SubjectKind SubjectKind // reviews.subject_kind ('doctor' or 'lab')
    SubjectID   uint64      // reviews.subject_id
    Rating      float64     // reviews.rating (0..5)
    Text        string      // reviews.text
    CreatedAt   time.Time   // reviews.created_at
}
