package dbclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"infradesk/internal/domain"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(&domain.DatabaseConnection{Host: "db", Database: "plant", Username: "ops", SSLMode: "require"}, "pw")
	assert.Equal(t, "ops:pw@tcp(db:3306)/plant?parseTime=true&charset=utf8mb4&tls=true", dsn)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn := buildPostgresDSN(&domain.DatabaseConnection{Host: "pg", Port: 6432, Database: "plant", Username: "ops"}, "pw")
	assert.Equal(t, "host=pg port=6432 user=ops password=pw dbname=plant sslmode=disable", dsn)
}

func TestBuildMongoURI(t *testing.T) {
	uri := buildMongoURI(&domain.DatabaseConnection{
		Host:     "mongo",
		Username: "ops",
		Extra:    map[string]string{"replicaSet": "rs0", "authSource": "admin"},
	}, "pw")
	assert.Equal(t, "mongodb://ops:pw@mongo:27017/?authSource=admin&replicaSet=rs0", uri)

	uri = buildMongoURI(&domain.DatabaseConnection{Host: "mongodb+srv://ops:<password>@cluster.example.net/plant"}, "pw")
	assert.Equal(t, "mongodb+srv://ops:pw@cluster.example.net/plant", uri)
}

func TestDatabaseFromURI(t *testing.T) {
	assert.Equal(t, "plant", databaseFromURI("mongodb+srv://ops:pw@cluster.example.net/plant?retryWrites=true"))
	assert.Equal(t, "test", databaseFromURI("mongodb://mongo:27017"))
	assert.Equal(t, "test", databaseFromURI("mongodb://mongo:27017/?replicaSet=rs0"))
}

func TestDocumentsToResult(t *testing.T) {
	oid := bson.NewObjectID()
	res := documentsToResult([]bson.D{
		{{Key: "name", Value: "Pump"}, {Key: "_id", Value: oid}, {Key: "qty", Value: int32(4)}},
		{{Key: "_id", Value: oid}, {Key: "site", Value: "North"}},
	})
	assert.Equal(t, []string{"_id", "name", "qty", "site"}, res.Columns)
	assert.Equal(t, []any{oid.Hex(), "Pump", int64(4), nil}, res.Rows[0])
	assert.Equal(t, []any{oid.Hex(), nil, nil, "North"}, res.Rows[1])
}
