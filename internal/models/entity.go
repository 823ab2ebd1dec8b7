// Package models defines data structures for Corvus
package models

import "time"

// EntityType categorizes the owner of financial positions.
type EntityType string

const (
	EntityTypePerson     EntityType = "person"
	EntityTypeCompany    EntityType = "company"
	EntityTypeBank       EntityType = "bank"
	EntityTypeGovernment EntityType = "government"
	EntityTypeFund       EntityType = "fund"
	EntityTypeOther      EntityType = "other"
)

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypePerson, EntityTypeCompany, EntityTypeBank, EntityTypeGovernment, EntityTypeFund, EntityTypeOther:
		return true
	}
	return false
}

// Entity represents a person or organization owning financial positions.
// Entities are created once and soft-deactivated — never hard-deleted, since
// transaction and audit history reference them.
type Entity struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	Name      string     `json:"name"`
	TaxID     string     `json:"tax_id,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
