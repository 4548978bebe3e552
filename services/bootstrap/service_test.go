package bootstrap

import (
	"context"
	"testing"

	"fundwave/pkg/config"
	"fundwave/services/testutil"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestMigrateSeedsAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Platform.Name = "FundWaveSL"
	cfg.Platform.AdminEmail = "Admin@FundWave.sl"
	cfg.Platform.AdminPassword = "change-me-please"

	users := user.NewService(user.ServiceParams{DB: db, Node: node})
	svc := NewService(ServiceParams{DB: db, Config: cfg, Users: users})

	require.NoError(t, svc.Migrate(context.Background()))
	require.NoError(t, svc.Migrate(context.Background()))

	for _, m := range Models() {
		require.True(t, db.Migrator().HasTable(m))
	}

	var admins []user.User
	require.NoError(t, db.Where("role = ?", user.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	require.Equal(t, "admin@fundwave.sl", admins[0].Email)
}

func TestMigrateWithoutAdminConfig(t *testing.T) {
	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Config: &config.Config{}, Users: user.NewService(user.ServiceParams{DB: db, Node: node})})
	require.NoError(t, svc.Migrate(context.Background()))

	var count int64
	require.NoError(t, db.Model(&user.User{}).Count(&count).Error)
	require.Zero(t, count)
}
