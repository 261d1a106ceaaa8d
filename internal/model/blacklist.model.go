package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

type BlacklistKind string

const (
	BlacklistKindEmail       BlacklistKind = "email"
	BlacklistKindIP          BlacklistKind = "ip"
	BlacklistKindPhone       BlacklistKind = "phone"
	BlacklistKindNamePattern BlacklistKind = "name_pattern"
	BlacklistKindPayeeNumber BlacklistKind = "payee_number"
)

func (k BlacklistKind) Valid() bool {
	switch k {
	case BlacklistKindEmail, BlacklistKindIP, BlacklistKindPhone,
		BlacklistKindNamePattern, BlacklistKindPayeeNumber:
		return true
	}
	return false
}

// BlacklistEntry is a (kind, value) tuple blocked from donating. For
// name_pattern the value is a case-insensitive regex, exact match otherwise.
type BlacklistEntry struct {
	ID        int64         `json:"id"`
	Kind      BlacklistKind `json:"kind"`
	Value     string        `json:"value"`
	Reason    string        `json:"reason"`
	IsActive  bool          `json:"is_active"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedBy int64         `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

func (e *BlacklistEntry) Validate() error {
	if !e.Kind.Valid() {
		return errors.New("unknown blacklist kind")
	}
	if strings.TrimSpace(e.Value) == "" {
		return errors.New("value is required")
	}
	if e.Kind == BlacklistKindNamePattern {
		if _, err := regexp.Compile("(?i)" + e.Value); err != nil {
			return errors.New("name pattern is not a valid regex")
		}
	}
	return nil
}

// ActiveAt reports whether the entry should be honored at the given instant.
func (e *BlacklistEntry) ActiveAt(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return false
	}
	return true
}
