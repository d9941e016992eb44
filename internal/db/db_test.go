package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xxxsen/podsage/internal/config"
)

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", buildDSN(config.DatabaseConfig{DSN: "postgres://x"}))
	assert.Equal(t,
		"host=localhost port=5432 user=u password=p dbname=podsage sslmode=disable",
		buildDSN(config.DatabaseConfig{
			Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "podsage",
		}))
	assert.Contains(t,
		buildDSN(config.DatabaseConfig{Host: "h", SSLMode: "require"}),
		"sslmode=require")
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
	assert.Empty(t, splitStatements(" ;\n; "))
}
