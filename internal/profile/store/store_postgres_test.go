package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"cliquey/internal/profile/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
)

var profileCols = []string{
	"id", "public_id", "owner_id", "name", "phone", "linkedin", "bio",
	"visit_count", "ratings_sum", "num_ratings", "average_rating", "created_at", "updated_at",
}

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	s.Require().NoError(err)
	s.db, s.mock, s.store = db, mock, NewPostgres(db)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

func profileRow(p *models.Profile) []driver.Value {
	return []driver.Value{
		p.ID.String(), p.PublicID.String(), p.OwnerID.String(), p.Name, p.Phone, p.LinkedIn, p.Bio,
		p.VisitCount, p.RatingsSum, p.NumRatings, p.AverageRating, p.CreatedAt, p.UpdatedAt,
	}
}

func sampleProfile() *models.Profile {
	now := time.Now().UTC()
	return &models.Profile{
		ID: id.NewProfileID(), PublicID: id.NewPublicID(), OwnerID: id.NewUserID(),
		Name: "Ada", VisitCount: 7, RatingsSum: 9, NumRatings: 2, AverageRating: 4.5,
		CreatedAt: now, UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestIncrementVisitsReturnsRow() {
	p := sampleProfile()
	s.mock.ExpectQuery(regexp.QuoteMeta("SET visit_count = visit_count + 1")).
		WithArgs(uuid.UUID(p.PublicID)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(profileRow(p)...))

	got, err := s.store.IncrementVisits(context.Background(), p.PublicID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal(int64(7), got.VisitCount)
}

func (s *PostgresStoreSuite) TestIncrementVisitsUnknown() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SET visit_count = visit_count + 1")).
		WillReturnRows(sqlmock.NewRows(profileCols))

	_, err := s.store.IncrementVisits(context.Background(), id.NewPublicID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByIDForUpdateLocksRow() {
	p := sampleProfile()
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs(uuid.UUID(p.ID)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(profileRow(p)...))

	got, err := s.store.FindByIDForUpdate(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(p.OwnerID, got.OwnerID)
	s.InDelta(4.5, got.AverageRating, 1e-9)
}

func (s *PostgresStoreSuite) TestUpdateRatingWritesAggregate() {
	p := sampleProfile()
	s.mock.ExpectExec(regexp.QuoteMeta("SET ratings_sum = $2, num_ratings = $3, average_rating = $4")).
		WithArgs(uuid.UUID(p.ID), int64(9), int64(2), 4.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.store.UpdateRating(context.Background(), p))
}

func (s *PostgresStoreSuite) TestUpdateRatingSerializationFailure() {
	p := sampleProfile()
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles")).
		WillReturnError(&pgconn.PgError{Code: "40001"})

	s.ErrorIs(s.store.UpdateRating(context.Background(), p), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestDeleteMissing() {
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM profiles")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s.ErrorIs(s.store.Delete(context.Background(), id.NewProfileID()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSearch() {
	p := sampleProfile()
	s.mock.ExpectQuery(regexp.QuoteMeta("ILIKE ALL ($1::text[])")).
		WithArgs(sqlmock.AnyArg(), 20, 0).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(profileRow(p)...))

	got, err := s.store.Search(context.Background(), models.SearchQuery{Terms: []string{"ada"}, Limit: 20})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(p.PublicID, got[0].PublicID)
}

func (s *PostgresStoreSuite) TestListByOwner() {
	p := sampleProfile()
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 ORDER BY created_at, id")).
		WithArgs(uuid.UUID(p.OwnerID)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(profileRow(p)...))

	got, err := s.store.ListByOwner(context.Background(), p.OwnerID)
	s.Require().NoError(err)
	s.Len(got, 1)
}
