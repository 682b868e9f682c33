package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawl-tracker/internal/adapter/postgres"
	"github.com/user/crawl-tracker/internal/entity"
)

func TestDomainRepo_GetOrCreate_Inserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("WITH ins AS").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(int64(1), "example.com", created))

	d, err := repo.GetOrCreate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ID)
	assert.Equal(t, "example.com", d.Domain)
	assert.Equal(t, created, d.CreatedAt)

	expectationsMet(t, mock)
}

func TestDomainRepo_GetOrCreate_RefetchesWhenUpsertSeesNoRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectQuery("WITH ins AS").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns))
	mock.ExpectQuery("^SELECT id, domain, created_at FROM domains WHERE domain").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(int64(9), "example.com", time.Now()))

	d, err := repo.GetOrCreate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9), d.ID)

	expectationsMet(t, mock)
}

func TestDomainRepo_GetOrCreate_RefetchesOnUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectQuery("WITH ins AS").
		WithArgs("example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("^SELECT id, domain, created_at FROM domains WHERE domain").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(int64(4), "example.com", time.Now()))

	d, err := repo.GetOrCreate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.ID)

	expectationsMet(t, mock)
}

func TestDomainRepo_GetOrCreate_RetriesOnlyOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectQuery("WITH ins AS").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns))
	mock.ExpectQuery("^SELECT id, domain, created_at FROM domains WHERE domain").
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns))

	_, err := repo.GetOrCreate(context.Background(), "example.com")
	var storeErr *entity.StoreError
	require.True(t, errors.As(err, &storeErr))

	expectationsMet(t, mock)
}

func TestDomainRepo_GetOrCreate_OtherErrorsAreNotRetried(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)
	cause := errors.New("connection reset")

	mock.ExpectQuery("WITH ins AS").
		WithArgs("example.com").
		WillReturnError(cause)

	_, err := repo.GetOrCreate(context.Background(), "example.com")
	var storeErr *entity.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.ErrorIs(t, err, cause)

	expectationsMet(t, mock)
}

func TestDomainRepo_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM domains").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows(domainColumns).
			AddRow(int64(3), "c.example", now).
			AddRow(int64(2), "b.example", now.Add(-time.Hour)))
	mock.ExpectCommit()

	list, err := repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.PerPage)
	assert.Equal(t, 5, list.Total)
	assert.Equal(t, 3, list.TotalPages)
	require.Len(t, list.Domains, 2)
	assert.Equal(t, "c.example", list.Domains[0].Domain)

	expectationsMet(t, mock)
}

func TestDomainRepo_List_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM domains").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(domainColumns))
	mock.ExpectCommit()

	list, err := repo.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)
	assert.Equal(t, 0, list.TotalPages)
	assert.NotNil(t, list.Domains)
	assert.Empty(t, list.Domains)

	expectationsMet(t, mock)
}

func TestDomainRepo_List_ClampsArguments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM domains").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(1, 0).
		WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(int64(1), "a.example", time.Now()))
	mock.ExpectCommit()

	list, err := repo.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 1, list.PerPage)
	assert.Equal(t, 1, list.TotalPages)

	expectationsMet(t, mock)
}

func TestDomainRepo_List_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewDomainRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM domains").
		WillReturnError(errors.New("timeout"))
	mock.ExpectRollback()

	_, err := repo.List(context.Background(), 1, 10)
	var storeErr *entity.StoreError
	assert.True(t, errors.As(err, &storeErr))

	expectationsMet(t, mock)
}
