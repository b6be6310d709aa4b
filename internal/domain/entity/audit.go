package entity

import "time"

// AuditEntry is one line of an entity's activity trail. Core entities
// append to the trail through an injected AuditLog, never implicitly.
type AuditEntry struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audit entity types
const (
	AuditClaim      = "claim"
	AuditPolicy     = "policy"
	AuditMember     = "member"
	AuditBordereau  = "bordereau"
	AuditSettlement = "settlement"
)
