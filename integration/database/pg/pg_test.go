package pg_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/zonecast/integration/database/pg"
)

func TestConnect_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := pg.Connect(ctx, pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(ctx, pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.ErrorIs(t, pg.Migrate(ctx, nil, pg.Config{}, nil), pg.ErrMigrationPathNotProvided)

	missing := filepath.Join(t.TempDir(), "missing")
	assert.ErrorIs(t, pg.Migrate(ctx, nil, pg.Config{MigrationsPath: missing}, nil), pg.ErrMigrationsDirNotFound)

	assert.ErrorIs(t, pg.Migrate(ctx, nil, pg.Config{MigrationsPath: t.TempDir()}, nil), pg.ErrFailedToApplyMigrations)
}
