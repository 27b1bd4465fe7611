package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_DSNFormat(t *testing.T) {
	cfg := Config{User: "u", Password: "p", Host: "localhost:5432", Database: "crawler"}
	require.Equal(t, "postgres://u:p@localhost:5432/crawler?sslmode=disable", cfg.dsn())
}
