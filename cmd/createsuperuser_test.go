package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/profiles-api/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func memoryConfig() config.Config {
	return config.Config{
		StoreBackend: config.StoreBackendMemory,
		BcryptCost:   bcrypt.MinCost,
		MQ:           config.MQConfig{Backend: config.MQBackendNone},
	}
}

func TestCreateSuperuser(t *testing.T) {
	account, err := createSuperuser(context.Background(), memoryConfig(), zap.NewNop(), "Root@Example.COM", " Root ", "pw")
	require.NoError(t, err)

	assert.Equal(t, "Root@example.com", account.Email)
	assert.Equal(t, "Root", account.Name)
	assert.True(t, account.IsSuperuser)
	assert.True(t, account.IsStaff)
	assert.True(t, account.Credential.Verify("pw"))
}

func TestCreateSuperuserRequiresName(t *testing.T) {
	_, err := createSuperuser(context.Background(), memoryConfig(), zap.NewNop(), "root@example.com", "  ", "pw")
	assert.Error(t, err)
}

func TestCreateSuperuserRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "cassandra"
	_, err := createSuperuser(context.Background(), cfg, zap.NewNop(), "root@example.com", "Root", "pw")
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestPromptPasswordWithoutTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	password, err := promptPassword(f, os.Stderr)
	require.NoError(t, err)
	assert.Empty(t, password)
}
