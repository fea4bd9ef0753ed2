// package models defines the persisted data model for play history
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Play outcomes. Failures use the dispatch stage name.
const (
	OutcomeOK = "ok"
)

// Play is one dispatched click of a play button.
type Play struct {
	id        string
	sequence  int
	URI       string
	Resource  string // track, playlist or album; empty when the URI was rejected
	DeviceID  string
	Outcome   string
	Message   string
	Source    string // where the click came from: cli, tui or a note path
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

var _ Model = (*Play)(nil)

// NewPlay creates a play stamped with the current time.
func NewPlay(uri, resource, deviceID, outcome, message, source string) *Play {
	now := time.Now().UTC()
	return &Play{
		URI:       uri,
		Resource:  resource,
		DeviceID:  deviceID,
		Outcome:   outcome,
		Message:   message,
		Source:    source,
		createdAt: now,
		updatedAt: now,
	}
}

func (p *Play) ID() string            { return p.id }
func (p *Play) Sequence() int         { return p.sequence }
func (p *Play) CreatedAt() time.Time  { return p.createdAt }
func (p *Play) UpdatedAt() time.Time  { return p.updatedAt }
func (p *Play) DeletedAt() *time.Time { return p.deletedAt }

func (p *Play) SetID(id string)              { p.id = id }
func (p *Play) SetSequence(seq int)          { p.sequence = seq }
func (p *Play) SetCreatedAt(t time.Time)     { p.createdAt = t }
func (p *Play) SetUpdatedAt(t time.Time)     { p.updatedAt = t }
func (p *Play) SetDeletedAt(t *time.Time)    { p.deletedAt = t }

// Succeeded reports whether playback started.
func (p *Play) Succeeded() bool {
	return p.Outcome == OutcomeOK
}

// Validate checks required fields.
func (p *Play) Validate() error {
	if p.id == "" {
		return fmt.Errorf("play ID is required")
	}
	if p.URI == "" {
		return fmt.Errorf("play URI is required")
	}
	if p.Outcome == "" {
		return fmt.Errorf("play outcome is required")
	}
	return nil
}
