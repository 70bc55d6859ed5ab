package database

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core"
)

func TestEnsureAppUser(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{Name: "chuo", User: "chuo_app", Password: "it's secret"}}
	checkRole := regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)")

	t.Run("creates missing user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(checkRole).WithArgs("chuo_app").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE USER "chuo_app" CREATEDB ENCRYPTED PASSWORD 'it''s secret'`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, ensureAppUser(db, conf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps existing user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(checkRole).WithArgs("chuo_app").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, ensureAppUser(db, conf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no app user configured", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, ensureAppUser(db, &core.Config{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureDatabase(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{Name: "chuo-dev"}}
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)")).
		WithArgs("chuo-dev").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "chuo-dev"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ensureDatabase(db, conf))
	assert.NoError(t, mock.ExpectationsWereMet())
}
