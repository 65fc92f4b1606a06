package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account bound to an opaque gateway subject.
// The subject is already anonymized upstream; no personal data is stored.
type User struct {
	ID           uuid.UUID `json:"id"`
	Subject      string    `json:"subject"`
	DisplayName  *string   `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}
