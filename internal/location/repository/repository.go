// Package repository persists the commit audit trail: one row per atomic
// location commit, written by a subscriber on the in-process event bus.
package repository

import (
	"context"
	"errors"
	"time"

	"backoffice_portal_backend/internal/events"
	"backoffice_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("location commit not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Commit is one audited location commit. Because commits are atomic, every
// column of a row originates from the same resolution event.
type Commit struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Variant     string
	Source      string
	Address     string
	City        string
	Province    string
	District    string
	PostalCode  string
	Country     string
	CountryCode string
	Latitude    float64
	Longitude   float64
	PlaceID     string
	CommittedAt time.Time
}

// Insert records a commit.
func (r *Repository) Insert(ctx context.Context, commit Commit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO location_commits (
			id, session_id, variant, source,
			address, city, province, district, postal_code,
			country, country_code, latitude, longitude, place_id, committed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		commit.ID, commit.SessionID, commit.Variant, commit.Source,
		commit.Address, commit.City, commit.Province, commit.District, commit.PostalCode,
		commit.Country, commit.CountryCode, commit.Latitude, commit.Longitude, commit.PlaceID,
		commit.CommittedAt,
	)
	return err
}

// ListBySession returns the commit history of one session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]Commit, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, variant, source,
		       address, city, province, district, postal_code,
		       country, country_code, latitude, longitude, place_id, committed_at
		FROM location_commits
		WHERE session_id = $1
		ORDER BY committed_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Commit, 0)
	for rows.Next() {
		var item Commit
		if err := rows.Scan(
			&item.ID, &item.SessionID, &item.Variant, &item.Source,
			&item.Address, &item.City, &item.Province, &item.District, &item.PostalCode,
			&item.Country, &item.CountryCode, &item.Latitude, &item.Longitude, &item.PlaceID,
			&item.CommittedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// GetLatestBySession returns the most recent commit of one session.
func (r *Repository) GetLatestBySession(ctx context.Context, sessionID uuid.UUID) (Commit, error) {
	var item Commit
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, variant, source,
		       address, city, province, district, postal_code,
		       country, country_code, latitude, longitude, place_id, committed_at
		FROM location_commits
		WHERE session_id = $1
		ORDER BY committed_at DESC
		LIMIT 1
	`, sessionID).Scan(
		&item.ID, &item.SessionID, &item.Variant, &item.Source,
		&item.Address, &item.City, &item.Province, &item.District, &item.PostalCode,
		&item.Country, &item.CountryCode, &item.Latitude, &item.Longitude, &item.PlaceID,
		&item.CommittedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Commit{}, ErrNotFound
	}
	if err != nil {
		return Commit{}, err
	}
	return item, nil
}

// CommitFromEvent maps the published record onto an audit row.
func CommitFromEvent(event events.LocationCommitted) Commit {
	return Commit{
		ID:          uuid.New(),
		SessionID:   event.SessionID,
		Variant:     event.Variant,
		Source:      event.Source,
		Address:     event.Location.Address,
		City:        event.Location.City,
		Province:    event.Location.Province,
		District:    event.Location.District,
		PostalCode:  event.Location.PostalCode,
		Country:     event.Location.Country,
		CountryCode: event.Location.CountryCode,
		Latitude:    event.Location.Coordinates.Latitude,
		Longitude:   event.Location.Coordinates.Longitude,
		PlaceID:     event.Location.PlaceID,
		CommittedAt: event.OccurredAt(),
	}
}

// Subscribe wires the audit writer onto the event bus. Persistence failures
// are logged, never surfaced to the committing request.
func Subscribe(bus events.Bus, repo *Repository, log *logger.Logger) {
	bus.Subscribe(events.LocationCommitted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		committed, ok := event.(events.LocationCommitted)
		if !ok {
			return nil
		}

		if err := repo.Insert(ctx, CommitFromEvent(committed)); err != nil {
			log.DatabaseError("insert location commit", err)
			return err
		}
		return nil
	}))
}
