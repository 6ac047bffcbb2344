// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// each one to a stable HTTP response.  The distinction between
// ErrInvalidRefresh (terminal — the client must re-authenticate) and a
// generic storage failure (possibly transient) matters to refresh-retry
// loops, so the two are never conflated.
package repository

import "errors"

// ErrInvalidCredentials is returned when a login attempt presents an
// unknown email or a wrong password.  The two cases are deliberately
// indistinguishable.  Handlers translate this into HTTP 401.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailExists is returned when a signup attempts to reuse an email
// address.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrPhoneExists is returned when a signup attempts to reuse a phone
// number.  Handlers translate this into HTTP 409.
var ErrPhoneExists = errors.New("phone already exists")

// ErrInvalidRefresh is returned when a presented refresh secret does not
// match any live session, either because it was rotated, revoked by
// logout, or never existed.  This failure is terminal: the caller must
// stop retrying and force a fresh login.  Handlers translate this into
// HTTP 401.
var ErrInvalidRefresh = errors.New("invalid refresh secret")

// ErrNotFound is returned when a requested booking or user row does not
// exist.  Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrSubjectNotFound is returned when the doctor or lab referenced by a
// booking or review does not exist.  Handlers translate this into HTTP
// 404 with a subject-specific message.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they neither own nor operate.  Existence is always checked
// first, so a Forbidden result confirms the resource exists; that policy
// is applied uniformly across all routes.  Handlers translate this into
// HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrIllegalTransition is returned when a status update would move a
// booking out of a terminal state (COMPLETED or CANCELLED).  Handlers
// translate this into HTTP 422.
var ErrIllegalTransition = errors.New("illegal status transition")
