package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"infradesk/internal/dbclient"
	"infradesk/internal/domain"
	"infradesk/internal/logging"
	"infradesk/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Database Service — configured external databases as import sources
// ─────────────────────────────────────────────────────────────

// ConnectorFactory opens a connector. Tests substitute it.
type ConnectorFactory func(conn *domain.DatabaseConnection, password string) (dbclient.Connector, error)

// DatabaseService resolves configured connections by name and keeps one
// live connector per connection.
type DatabaseService struct {
	connections map[string]domain.DatabaseConnection
	secrets     secret.SecretStore
	open        ConnectorFactory
	log         *logrus.Entry

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

// NewDatabaseService creates a DatabaseService over the configured connections.
func NewDatabaseService(
	connections []domain.DatabaseConnection,
	secrets secret.SecretStore,
	log *logrus.Entry,
) *DatabaseService {
	byName := make(map[string]domain.DatabaseConnection, len(connections))
	for _, c := range connections {
		byName[c.Name] = c
	}
	return &DatabaseService{
		connections:      byName,
		secrets:          secrets,
		open:             dbclient.NewConnector,
		log:              logging.OrDiscard(log),
		activeConnectors: make(map[string]*connEntry),
	}
}

// WithConnectorFactory replaces how connectors are opened.
func (s *DatabaseService) WithConnectorFactory(f ConnectorFactory) *DatabaseService {
	s.open = f
	return s
}

// ListConnections returns the configured connections sorted by name.
func (s *DatabaseService) ListConnections() []domain.DatabaseConnection {
	out := make([]domain.DatabaseConnection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TestConnection pings a configured connection.
func (s *DatabaseService) TestConnection(ctx context.Context, name string) error {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return err
	}
	return connector.TestConnection(ctx)
}

// Query runs a read query against the named connection.
func (s *DatabaseService) Query(ctx context.Context, name, query string, limit int) (*dbclient.QueryResult, error) {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	result, err := connector.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"connection": name, "rows": len(result.Rows)}).Debug("query finished")
	return result, nil
}

// ── Connector Pool ─────────────────────────────────────────

func (s *DatabaseService) getOrCreate(name string) (dbclient.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[name]; ok {
		return e.connector, nil
	}

	conn, ok := s.connections[name]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", name, domain.ErrNotFound)
	}

	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get(conn.PasswordKey); err == nil {
			password = string(pw)
		}
	}

	connector, err := s.open(&conn, password)
	if err != nil {
		return nil, fmt.Errorf("open db connection %s: %w", name, err)
	}
	s.activeConnectors[name] = &connEntry{connector: connector, createdAt: time.Now()}
	return connector, nil
}

// Close tears down all active database connectors.
func (s *DatabaseService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.activeConnectors {
		_ = entry.connector.Close()
		delete(s.activeConnectors, name)
	}
}
