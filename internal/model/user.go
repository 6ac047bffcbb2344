package model

import "time"

// User represents an account record as stored in the `users` table.  The
// json tags are omitted because these structs are used internally by the
// repository layer; handlers define separate response types.
//
// RefreshTokenHash holds the SHA-256 digest of the single active refresh
// secret, or nil when the user has no live session.  Overwriting it
// invalidates the previous session: the platform allows at most one live
// refresh secret per user.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Email            – unique email address (stored lower-case).
//  Phone            – optional unique phone number.
//  FullName         – display name.
//  PasswordHash     – bcrypt hashed password.
//  Role             – account role (PATIENT, DOCTOR, LAB_OWNER, ADMIN, STAFF).
//  RefreshTokenHash – SHA-256 hex digest of the active refresh secret (nullable).
//  LastLoginAt      – timestamp of the most recent successful login (nullable).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
    ID               uint64     // users.id
    Email            string     // users.email
    Phone            *string    // users.phone (nullable)
    FullName         string     // users.full_name
    PasswordHash     string     // users.password_hash
    Role             Role       // users.role
    RefreshTokenHash *string    // users.refresh_token_hash (nullable)
    LastLoginAt      *time.Time // users.last_login_at (nullable)
    CreatedAt        time.Time  // users.created_at
    UpdatedAt        time.Time  // users.updated_at
}
