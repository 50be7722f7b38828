package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cliquey/internal/platform/database"
	"cliquey/internal/profile/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	platformstrings "cliquey/pkg/platform/strings"
	"cliquey/pkg/platform/tx"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, public_id, owner_id, name, phone, linkedin, bio,
	visit_count, ratings_sum, num_ratings, average_rating, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.PublicID),
		uuid.UUID(p.OwnerID),
		p.Name,
		p.Phone,
		p.LinkedIn,
		p.Bio,
		p.VisitCount,
		p.RatingsSum,
		p.NumRatings,
		p.AverageRating,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", database.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, uuid.UUID(profileID))
	return scanSingle(row)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, uuid.UUID(profileID))
	return scanSingle(row)
}

func (s *PostgresStore) FindByPublicID(ctx context.Context, publicID id.PublicID) (*models.Profile, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE public_id = $1`, uuid.UUID(publicID))
	return scanSingle(row)
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles
		SET name = $2, phone = $3, linkedin = $4, bio = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Name, p.Phone, p.LinkedIn, p.Bio, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile: %w", database.MapError(err))
	}
	return requireOneRow(res)
}

// UpdateRating writes sum, count and average in one statement.
func (s *PostgresStore) UpdateRating(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles
		SET ratings_sum = $2, num_ratings = $3, average_rating = $4
		WHERE id = $1
	`
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.RatingsSum, p.NumRatings, p.AverageRating)
	if err != nil {
		return fmt.Errorf("update profile rating: %w", database.MapError(err))
	}
	return requireOneRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, profileID id.ProfileID) error {
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`DELETE FROM profiles WHERE id = $1`, uuid.UUID(profileID))
	if err != nil {
		return fmt.Errorf("delete profile: %w", database.MapError(err))
	}
	return requireOneRow(res)
}

// IncrementVisits bumps the counter in place and returns the new row, so
// concurrent views never lose an increment.
func (s *PostgresStore) IncrementVisits(ctx context.Context, publicID id.PublicID) (*models.Profile, error) {
	query := `
		UPDATE profiles SET visit_count = visit_count + 1
		WHERE public_id = $1
		RETURNING ` + profileColumns
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(publicID))
	p, err := scanSingle(row)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, database.MapError(err)
	}
	return p, err
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Profile, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE owner_id = $1 ORDER BY created_at, id`,
		uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return scanAll(rows)
}

// Search matches every term against the text columns joined by newlines.
// Terms never contain whitespace, so a match cannot straddle two columns.
func (s *PostgresStore) Search(ctx context.Context, query models.SearchQuery) ([]*models.Profile, error) {
	q := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE concat_ws(E'\n', name, phone, linkedin, bio) ILIKE ALL ($1::text[])
		ORDER BY average_rating DESC, created_at, id
		LIMIT $2 OFFSET $3
	`
	patterns := platformstrings.ContainsPatterns(query.Terms)
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx, q, pq.Array(patterns), query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return scanAll(rows)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSingle(row *sql.Row) (*models.Profile, error) {
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func scanAll(rows *sql.Rows) ([]*models.Profile, error) {
	defer rows.Close()
	out := make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                          models.Profile
		profileID, publicID, owner uuid.UUID
	)
	err := row.Scan(
		&profileID, &publicID, &owner,
		&p.Name, &p.Phone, &p.LinkedIn, &p.Bio,
		&p.VisitCount, &p.RatingsSum, &p.NumRatings, &p.AverageRating,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.ID = id.ProfileID(profileID)
	p.PublicID = id.PublicID(publicID)
	p.OwnerID = id.UserID(owner)
	return &p, nil
}
