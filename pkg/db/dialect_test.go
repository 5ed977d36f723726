package db

import (
	"testing"

	"github.com/smallbiznis/costbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectByType(t *testing.T) {
	for _, kind := range []string{"postgres", "mysql", "sqlite"} {
		dialect, err := Dialect(config.Config{DBType: kind, DBPath: "test.db"})
		require.NoError(t, err, kind)
		assert.Equal(t, kind, dialect.Name())
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}
