package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/internal/profile"
)

func TestNewDBDriver(t *testing.T) {
	driver, err := NewDBDriver(&profile.Profile{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "db.sqlite")})
	require.NoError(t, err)
	assert.NotNil(t, driver.GetDB())
	require.NoError(t, driver.Close())

	_, err = NewDBDriver(&profile.Profile{Driver: "postgres"})
	assert.Error(t, err, "postgres requires a dsn")

	_, err = NewDBDriver(&profile.Profile{Driver: "mysql"})
	assert.Error(t, err)
}
