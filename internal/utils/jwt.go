package utils // package utils provides helper functions for token creation, verification and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for refresh secrets
    "encoding/hex"  // hex encoding functions
    "errors"        // sentinel error values
    "time"          // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is returned by VerifyAccessToken for every failure mode:
// bad signature, wrong algorithm, malformed claims or expiry.  Callers get
// a single uniform signal and must not learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short-lived and travel in
// the Authorization header when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshSecret represents the long-lived opaque value used to obtain new
// access tokens.  The Raw field contains the value handed back to the
// client (via an HTTP-only cookie).  Only the SHA-256 hash of Raw is ever
// stored server-side.
type RefreshSecret struct {
    Raw string    // raw secret returned to the client
    Exp time.Time // UTC expiration time
}

// Identity is the pair of claims carried by a valid access token.
type Identity struct {
    UserID uint64 // subject claim
    Role   string // role claim
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID, the user's role, and a TTL in minutes.  The
// JWT includes standard claims: subject (sub), role, expiration (exp) and
// issued at (iat).
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates a signed access token and returns
// the identity it carries.  Verification is stateless: only the signature
// and the embedded expiry are checked.  Any failure yields ErrInvalidToken.
func VerifyAccessToken(secret, raw string) (Identity, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with anything other than HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Identity{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Identity{}, ErrInvalidToken
    }
    sub, ok := claims["sub"].(float64) // numeric claims decode as float64
    if !ok || sub <= 0 {
        return Identity{}, ErrInvalidToken
    }
    role, ok := claims["role"].(string)
    if !ok || role == "" {
        return Identity{}, ErrInvalidToken
    }
    return Identity{UserID: uint64(sub), Role: role}, nil
}

// NewRefreshSecret returns a cryptographically secure random secret (raw)
// and its expiration time.  The secret is 48 random bytes hex-encoded, far
// above the 160-bit unguessability floor.  ttlDays controls how many days
// the secret stays valid.
func NewRefreshSecret(ttlDays int) (RefreshSecret, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshSecret{}, err
    }
    return RefreshSecret{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh secret as a
// hex string.  Storing only the hash prevents attackers holding a database
// dump from minting sessions.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
