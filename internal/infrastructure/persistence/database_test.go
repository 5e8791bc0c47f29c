package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDatabase(t *testing.T, opts ...DatabaseOption) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	// gorm.Open pings the connection once on open
	mock.ExpectPing()

	db, err := openDatabase(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), opts...)
	require.NoError(t, err)
	return db, mock
}

func TestScoped(t *testing.T) {
	tests := []struct {
		name  string
		scope ledger.Scope
		query string
		args  []driver.Value
	}{
		{
			name:  "owner only",
			scope: ledger.Scope{OwnerID: "owner-1"},
			query: `SELECT \* FROM "ledger_accounts" WHERE owner_id = \$1`,
			args:  []driver.Value{"owner-1"},
		},
		{
			name:  "owner and organization",
			scope: ledger.Scope{OwnerID: "owner-1", OrganizationID: "branch-1"},
			query: `SELECT \* FROM "ledger_accounts" WHERE owner_id = \$1 AND organization_id = \$2`,
			args:  []driver.Value{"owner-1", "branch-1"},
		},
		{
			name:  "hostile owner id stays a parameter",
			scope: ledger.Scope{OwnerID: "owner'; DROP TABLE ledger_entries; --"},
			query: `SELECT \* FROM "ledger_accounts" WHERE owner_id = \$1`,
			args:  []driver.Value{"owner'; DROP TABLE ledger_entries; --"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDatabase(t)
			mock.ExpectPrepare(tt.query).ExpectQuery().
				WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "code"}).AddRow("cash", tt.scope.OwnerID, "1001"))

			var rows []models.AccountModel
			require.NoError(t, scoped(db.DB, tt.scope).Find(&rows).Error)
			require.Len(t, rows, 1)
			assert.Equal(t, "1001", rows[0].Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("empty owner panics", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		assert.Panics(t, func() { scoped(db.DB, ledger.Scope{OrganizationID: "branch-1"}) })
	})
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, db.Ping(context.Background()), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)
	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingPlugin struct {
	name        string
	initialized bool
	err         error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) Initialize(*gorm.DB) error {
	p.initialized = true
	return p.err
}

func TestOpenDatabase_Plugins(t *testing.T) {
	plugin := &recordingPlugin{name: "ledger-tracing"}
	newMockDatabase(t, WithPlugins(plugin))
	assert.True(t, plugin.initialized)

	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	_, err = openDatabase(postgres.New(postgres.Config{Conn: conn}), WithPlugins(&recordingPlugin{name: "broken", err: assert.AnError}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
