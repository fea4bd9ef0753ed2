package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotiplay/internal/models"
	"github.com/desertthunder/spotiplay/internal/playback"
	"github.com/desertthunder/spotiplay/internal/shared"
)

const playColumns = `id, sequence, uri, resource, device_id, outcome, message, source, created_at, updated_at, deleted_at`

// PlayRepository implements [models.Repository] for [models.Play] history.
type PlayRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Play] = (*PlayRepository)(nil)

// NewPlayRepository creates a new [PlayRepository] with the given database connection
func NewPlayRepository(db *sql.DB) *PlayRepository {
	return &PlayRepository{db: db}
}

// Create inserts a new play with generated ID and sequence
func (r *PlayRepository) Create(play *models.Play) error {
	play.SetID(shared.GenerateID())
	if err := play.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "plays")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	play.SetSequence(sequence)

	query := `
		INSERT INTO plays (id, sequence, uri, resource, device_id, outcome, message, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		play.ID(), sequence, play.URI, play.Resource, play.DeviceID,
		play.Outcome, play.Message, play.Source, play.CreatedAt(), play.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}
	return nil
}

// Get retrieves a play by ID, excluding soft-deleted plays
func (r *PlayRepository) Get(id string) (*models.Play, error) {
	query := `SELECT ` + playColumns + ` FROM plays WHERE id = ? AND deleted_at IS NULL`

	play, err := scanPlay(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("play not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query play: %w", err)
	}
	return play, nil
}

// Update modifies the outcome fields of an existing play
func (r *PlayRepository) Update(play *models.Play) error {
	if err := play.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	play.SetUpdatedAt(now)

	query := `
		UPDATE plays
		SET device_id = ?, outcome = ?, message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, play.DeviceID, play.Outcome, play.Message, now, play.ID())
	if err != nil {
		return fmt.Errorf("failed to update play: %w", err)
	}
	return requireRow(result, play.ID())
}

// Delete soft-deletes a play by ID
func (r *PlayRepository) Delete(id string) error {
	query := `UPDATE plays SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete play: %w", err)
	}
	return requireRow(result, id)
}

// List retrieves plays newest first, excluding soft-deleted plays.
//
// Criteria: "outcome" (string), "uri" (string), "limit" (int).
func (r *PlayRepository) List(criteria map[string]any) ([]*models.Play, error) {
	query := `SELECT ` + playColumns + ` FROM plays WHERE deleted_at IS NULL`
	args := []any{}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}
	if uri, ok := criteria["uri"].(string); ok && uri != "" {
		query += " AND uri = ?"
		args = append(args, uri)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	plays := []*models.Play{}
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, play)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return plays, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlay(row scanner) (*models.Play, error) {
	var (
		id, uri, resource, deviceID string
		outcome, message, source    string
		sequence                    int
		createdAt, updatedAt        time.Time
		deletedAt                   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &uri, &resource, &deviceID, &outcome, &message, &source, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	play := models.NewPlay(uri, resource, deviceID, outcome, message, source)
	play.SetID(id)
	play.SetSequence(sequence)
	play.SetCreatedAt(createdAt)
	play.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		play.SetDeletedAt(&deletedAt.Time)
	}
	return play, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("play not found or already deleted: %s", id)
	}
	return nil
}

// PlayRecorder stores every dispatch result as a [models.Play]. Implements [playback.Recorder].
type PlayRecorder struct {
	repo   *PlayRepository
	source string
}

var _ playback.Recorder = (*PlayRecorder)(nil)

// NewPlayRecorder records into repo, tagging each play with source.
func NewPlayRecorder(repo *PlayRepository, source string) *PlayRecorder {
	return &PlayRecorder{repo: repo, source: source}
}

func (r *PlayRecorder) Record(ctx context.Context, res playback.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var resource string
	if res.Target.URI != "" {
		resource = res.Target.Resource.String()
	}

	outcome := models.OutcomeOK
	if !res.OK() {
		outcome = res.Kind.String()
	}

	play := models.NewPlay(res.URI, resource, res.DeviceID, outcome, res.Message, r.source)
	return r.repo.Create(play)
}
