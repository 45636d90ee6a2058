package domain

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConnection describes an external database that can be queried as
// a workbook source. The password is resolved separately through a
// SecretStore using PasswordKey.
type DatabaseConnection struct {
	Name        string            `json:"name" mapstructure:"name"`
	Driver      DatabaseDriver    `json:"driver" mapstructure:"driver"`
	Host        string            `json:"host" mapstructure:"host"` // hostname, URI (mongodb) or file path (sqlite)
	Port        int               `json:"port" mapstructure:"port"`
	Database    string            `json:"database" mapstructure:"database"`
	Username    string            `json:"username" mapstructure:"username"`
	SSLMode     string            `json:"sslMode" mapstructure:"ssl_mode"`
	PasswordKey string            `json:"passwordKey" mapstructure:"password_env"`
	Extra       map[string]string `json:"extra,omitempty" mapstructure:"extra"`
}
