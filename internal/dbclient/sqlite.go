package dbclient

import (
	"infradesk/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector creates a connector for an external SQLite file.
// Host carries the file path.
func newSQLiteConnector(conn *domain.DatabaseConnection) (*sqlConnector, error) {
	dsn := conn.Host + "?_pragma=busy_timeout(5000)&_pragma=query_only(1)"
	return newSQLConnector("sqlite", dsn)
}
