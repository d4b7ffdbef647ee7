package nats

import (
	"strings"
	"time"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
)

// MovementEvent represents a ledger movement published to NATS.
// This is published to the subject "movements.{tag}" in JetStream, where
// {tag} is the card tag with its space separators stripped (NATS subject
// tokens cannot contain spaces).
type MovementEvent struct {
	MovementID int64     `json:"movement_id"`
	HolderName string    `json:"holder_name"`
	TagID      string    `json:"tag_id"`
	Amount     int64     `json:"amount"`
	Kind       string    `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject this event is published to.
func (e *MovementEvent) Subject() string {
	return "movements." + SubjectToken(e.TagID)
}

// SubjectToken normalizes a card tag into a valid NATS subject token.
func SubjectToken(tagID string) string {
	return strings.ReplaceAll(tagID, " ", "")
}

// FromDBMovement converts a database movement to a MovementEvent for publishing.
func FromDBMovement(movement *db.Movement) *MovementEvent {
	return &MovementEvent{
		MovementID:  movement.ID,
		HolderName:  movement.HolderName,
		TagID:       movement.TagID,
		Amount:      movement.Amount,
		Kind:        string(movement.Kind),
		RecordedAt:  movement.RecordedAt,
		PublishedAt: time.Now().UTC(),
	}
}
