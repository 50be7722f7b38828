package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cliquey/internal/invitation/models"
	"cliquey/internal/platform/database"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// PostgresStore persists invitation codes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const invitationColumns = `id, code, issuer_id, expires_at, consumed, consumed_by, consumed_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, code *models.InvitationCode) error {
	query := `
		INSERT INTO invitation_codes (id, code, issuer_id, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(code.ID),
		code.Code,
		uuid.UUID(code.IssuerID),
		code.ExpiresAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invitation code: %w", database.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.InvitationCode, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitation_codes WHERE code = $1`, code)
	c, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

// Consume redeems the code in a single conditional UPDATE. Zero rows means the
// code is unknown, already consumed, or expired.
func (s *PostgresStore) Consume(ctx context.Context, code string, userID id.UserID, now time.Time) (*models.InvitationCode, error) {
	query := `
		UPDATE invitation_codes
		SET consumed = TRUE, consumed_by = $2, consumed_at = $3
		WHERE code = $1 AND NOT consumed AND expires_at > $3
		RETURNING ` + invitationColumns
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, code, uuid.UUID(userID), now)
	c, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consume invitation code: %w", sentinel.ErrInvalidState)
		}
		return nil, database.MapError(err)
	}
	return c, nil
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer id.UserID) ([]*models.InvitationCode, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitation_codes WHERE issuer_id = $1 ORDER BY created_at, code`,
		uuid.UUID(issuer))
	if err != nil {
		return nil, fmt.Errorf("list invitation codes: %w", err)
	}
	defer rows.Close()

	out := make([]*models.InvitationCode, 0)
	for rows.Next() {
		c, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitation codes: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.InvitationCode, error) {
	var (
		c          models.InvitationCode
		codeID     uuid.UUID
		issuerID   uuid.UUID
		consumedBy uuid.NullUUID
		consumedAt sql.NullTime
	)
	err := row.Scan(&codeID, &c.Code, &issuerID, &c.ExpiresAt, &c.Consumed, &consumedBy, &consumedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan invitation code: %w", err)
	}
	c.ID = id.InvitationID(codeID)
	c.IssuerID = id.UserID(issuerID)
	if consumedBy.Valid {
		by := id.UserID(consumedBy.UUID)
		c.ConsumedBy = &by
	}
	if consumedAt.Valid {
		at := consumedAt.Time
		c.ConsumedAt = &at
	}
	return &c, nil
}
