package model

import (
	"strings"
	"time"
)

// Permission names a capability an API key can be granted.
type Permission string

const (
	PermRead   Permission = "read"
	PermBook   Permission = "book"
	PermCancel Permission = "cancel"
	PermAdmin  Permission = "admin"
)

// Permissions is the capability set of an API key.  Admin implies every
// other permission.
type Permissions struct {
	Read   bool `json:"read"`
	Book   bool `json:"book"`
	Cancel bool `json:"cancel"`
	Admin  bool `json:"admin"`
}

// Has reports whether p grants perm.
func (p Permissions) Has(perm Permission) bool {
	if p.Admin {
		return true
	}
	switch perm {
	case PermRead:
		return p.Read
	case PermBook:
		return p.Book
	case PermCancel:
		return p.Cancel
	}
	return false
}

// ParsePermissions reads a comma separated list such as "read,book".
// Unknown names are ignored.
func ParsePermissions(s string) Permissions {
	var p Permissions
	for _, part := range strings.Split(s, ",") {
		switch Permission(strings.ToLower(strings.TrimSpace(part))) {
		case PermRead:
			p.Read = true
		case PermBook:
			p.Book = true
		case PermCancel:
			p.Cancel = true
		case PermAdmin:
			p.Admin = true
		}
	}
	return p
}

// APIKey represents a row of the `api_keys` table.  Only a bcrypt hash of
// the key is stored; Prefix keeps the first characters of the plain key so
// verification does not have to compare against every stored hash.
//
// Fields:
//  ID          – uuid primary key.
//  Prefix      – leading characters of the plain key.
//  KeyHash     – bcrypt hash of the plain key.
//  Name        – label chosen by the operator.
//  Permissions – capability set.
//  RateLimit   – requests per minute, 0 means the server default.
//  IsActive    – revoked keys are kept but inactive.
//  LastUsedAt  – last successful verification.
//  CreatedAt   – creation timestamp.
type APIKey struct {
	ID          string      // api_keys.id
	Prefix      string      // api_keys.key_prefix
	KeyHash     string      // api_keys.key_hash
	Name        string      // api_keys.name
	Permissions Permissions // api_keys.permissions (JSON)
	RateLimit   int         // api_keys.rate_limit
	IsActive    bool        // api_keys.is_active
	LastUsedAt  *time.Time  // api_keys.last_used_at (nullable)
	CreatedAt   time.Time   // api_keys.created_at
}

// Principal is the authenticated caller of a request.
type Principal struct {
	KeyID       string      `json:"api_key_id"`
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
	RateLimit   int         `json:"rate_limit,omitempty"`
}

// APILog is one entry of the API usage log.
type APILog struct {
	APIKeyID       string
	Endpoint       string
	Method         string
	StatusCode     int
	ResponseTimeMs int64
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}
