package config_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/config"
)

const sample = `
data_dir: /srv/infradesk
storage:
  backend: sqlite
log:
  level: debug
  format: json
ingest:
  inbox: /srv/inbox
  debounce: 2s
  profiles:
    engineering_projects:
      header_map:
        - from: Project Name
          to: project_name
        - from: Contractor
          to: contractor
      key_columns: [project_name, contractor]
maintenance:
  repair_schedule: "@daily"
mcp:
  allow_destructive: true
schemas:
  - name: assets
    identity_field: asset_tag
    identity_prefix: AST
connections:
  - name: crm
    driver: postgres
    host: db.internal
    port: 5432
    database: crm
    username: reader
    password_env: CRM_PASSWORD
`

func TestLoad_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/infradesk.yaml", []byte(sample), 0o644))

	cfg, err := config.Load("/etc/infradesk.yaml", fs)
	require.NoError(t, err)

	assert.Equal(t, "/srv/infradesk", cfg.DataDir)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2*time.Second, cfg.Ingest.Debounce)
	assert.True(t, cfg.MCP.AllowDestructive)
	assert.Equal(t, "env", cfg.Secrets.Backend)

	require.Len(t, cfg.Schemas, 1)
	assert.Equal(t, "asset_tag", cfg.Schemas[0].IdentityField)

	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "CRM_PASSWORD", cfg.Connections[0].PasswordKey)
	assert.Equal(t, 5432, cfg.Connections[0].Port)

	profile := cfg.Profiles()["engineering_projects"]
	assert.Equal(t, "project_name", profile.HeaderMap["Project Name"])
	assert.Equal(t, []string{"project_name", "contractor"}, profile.KeyColumns)

	w := cfg.Watch()
	assert.Equal(t, "/srv/inbox", w.Inbox)
	assert.Equal(t, "@daily", w.RepairSchedule)
	assert.Equal(t, "/srv/infradesk/infradesk.db", cfg.DBPath())
	assert.Equal(t, "/srv/infradesk/datasets", cfg.DatasetDir())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cfg, err := config.Load("", afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/infradesk", cfg.DataDir)
	assert.Equal(t, config.BackendFS, cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.Debounce)
	assert.False(t, cfg.MCP.AllowDestructive)
	assert.Empty(t, cfg.Profiles())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INFRADESK_STORAGE_BACKEND", "sqlite")
	t.Setenv("INFRADESK_MCP_ALLOW_DESTRUCTIVE", "true")
	t.Setenv("INFRADESK_DATA_DIR", "/tmp/x")

	cfg, err := config.Load("", afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.True(t, cfg.MCP.AllowDestructive)
	assert.Equal(t, "/tmp/x", cfg.DataDir)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := config.Load("/nope.yaml", afero.NewMemMapFs())
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte(`
storage:
  backend: s3
log:
  format: xml
schemas:
  - name: ../bad
connections:
  - name: a
  - name: a
`), 0o644))

	_, err := config.Load("/c.yaml", fs)
	require.Error(t, err)
	for _, want := range []string{"storage.backend", "log.format", "schemas[0]", "duplicate name"} {
		assert.Contains(t, err.Error(), want)
	}
}
