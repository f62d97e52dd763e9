// Package record defines the survey submission payload sent to the
// collector and stored in the delivery queue.
package record

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
)

// TimestampLayout matches JavaScript's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is one survey response. It is immutable once built.
type Record struct {
	Site     string `json:"sede"`
	DeviceID string `json:"dispositivo_id"`
	Kind     string `json:"tipo"`
	Rating   string `json:"calificacion"`
	Reason   string `json:"motivo"`
	Meta     Meta   `json:"meta"`
}

type Meta struct {
	UA     string `json:"ua"`
	Screen string `json:"screen"`
	TS     string `json:"ts"`
	ID     string `json:"id,omitempty"`
	Other  *Other `json:"otro,omitempty"`
}

// Other carries the free-text sub-form values.
type Other struct {
	Employee string `json:"empleado"`
	Comment  string `json:"comentario"`
}

// IdentitySource supplies the current site and device id.
type IdentitySource interface {
	Identity(ctx context.Context) (site, deviceID string)
}

// Builder stamps records with the kiosk's identity and environment.
type Builder struct {
	Kind      string
	UserAgent string
	Screen    string
	Clock     clock.Clock
	Source    IdentitySource
	NewID     func() string
}

// Build assembles a record for the given selection. other is nil unless the
// free-text sub-form was used.
func (b *Builder) Build(ctx context.Context, rating, reason string, other *Other) Record {
	var site, device string
	if b.Source != nil {
		site, device = b.Source.Identity(ctx)
	}
	now := time.Now
	if b.Clock != nil {
		now = b.Clock.Now
	}
	newID := b.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	rec := Record{
		Site:     site,
		DeviceID: device,
		Kind:     b.Kind,
		Rating:   rating,
		Reason:   reason,
		Meta: Meta{
			UA:     b.UserAgent,
			Screen: b.Screen,
			TS:     now().UTC().Format(TimestampLayout),
			ID:     newID(),
		},
	}
	if other != nil {
		copied := *other
		rec.Meta.Other = &copied
	}
	return rec
}
