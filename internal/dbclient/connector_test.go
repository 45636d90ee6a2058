package dbclient_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/dbclient"
	"infradesk/internal/domain"
)

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE assets (name TEXT, site TEXT, cost REAL, tag BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO assets VALUES ('Pump', 'North', 12.5, 'p-1'), ('Valve', 'South', 3, NULL)`)
	require.NoError(t, err)
	return path
}

func TestSQLiteConnectorQuery(t *testing.T) {
	path := seedSQLite(t)
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{Name: "local", Driver: domain.DatabaseDriverSQLite, Host: path}, "")
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, conn.TestConnection(ctx))

	res, err := conn.Query(ctx, "SELECT name, site, cost, tag FROM assets ORDER BY name", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "site", "cost", "tag"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Pump", res.Rows[0][0])
	assert.Equal(t, 12.5, res.Rows[0][2])
	assert.Equal(t, "p-1", res.Rows[0][3])
	assert.Nil(t, res.Rows[1][3])
}

func TestSQLiteConnectorLimit(t *testing.T) {
	path := seedSQLite(t)
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite, Host: path}, "")
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Query(context.Background(), "SELECT * FROM assets", 1)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestSQLConnectorRejectsWrites(t *testing.T) {
	path := seedSQLite(t)
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite, Host: path}, "")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Query(context.Background(), "DELETE FROM assets", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELETE")
}

func TestNewConnectorUnknownDriver(t *testing.T) {
	_, err := dbclient.NewConnector(&domain.DatabaseConnection{Driver: "oracle"}, "")
	assert.Error(t, err)
}
