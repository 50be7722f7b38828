package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cliquey/internal/auth/models"
	"cliquey/internal/platform/database"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, public_id, login, password_hash, role, invitation_code, created_at`

// Create inserts the user. A taken login surfaces as sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		uuid.UUID(user.PublicID),
		user.Login,
		user.PasswordHash,
		string(user.Role),
		user.InvitationCode,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", database.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresStore) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, login)
	return scanUser(row)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u        models.User
		userID   uuid.UUID
		publicID uuid.UUID
		role     string
	)
	err := row.Scan(&userID, &publicID, &u.Login, &u.PasswordHash, &role, &u.InvitationCode, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.PublicID = id.PublicID(publicID)
	u.Role = models.Role(role)
	return &u, nil
}
