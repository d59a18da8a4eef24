package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoadMigrationsFromFS_EmbeddedSchema(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)

	labels := make([]string, 0, len(migrations))
	for _, m := range migrations {
		require.NotEmpty(t, m.UpSQL, m.label())
		require.NotEmpty(t, m.DownSQL, m.label())
		labels = append(labels, m.label())
	}
	require.Equal(t, []string{
		"0001_cart_snapshots",
		"0002_orders",
		"0003_outbox_messages",
		"0004_timeline_events",
	}, labels)
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(fstest.MapFS{
		"sql/migrations/0010_orders.up.sql":           sqlFile("CREATE TABLE orders (id TEXT);"),
		"sql/migrations/0010_orders.down.sql":         sqlFile("DROP TABLE IF EXISTS orders;"),
		"sql/migrations/0002_cart_snapshots.up.sql":   sqlFile("  CREATE TABLE cart_snapshots (key TEXT);\n"),
		"sql/migrations/0002_cart_snapshots.down.sql": sqlFile("DROP TABLE IF EXISTS cart_snapshots;"),
	})
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	require.Equal(t, migration{
		Version: 2,
		Name:    "cart_snapshots",
		UpSQL:   "CREATE TABLE cart_snapshots (key TEXT);",
		DownSQL: "DROP TABLE IF EXISTS cart_snapshots;",
	}, migrations[0])
	require.Equal(t, "0010_orders", migrations[1].label())
}

func TestLoadMigrationsFromFS_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files",
		},
		{
			name:    "missing down",
			fsys:    fstest.MapFS{"sql/migrations/0001_cart_snapshots.up.sql": sqlFile("SELECT 1;")},
			wantErr: "both up and down",
		},
		{
			name:    "bad file name",
			fsys:    fstest.MapFS{"sql/migrations/not_a_migration.sql": sqlFile("SELECT 1;")},
			wantErr: "invalid migration file name",
		},
		{
			name: "blank body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_cart_snapshots.up.sql":   sqlFile("   \n"),
				"sql/migrations/0001_cart_snapshots.down.sql": sqlFile("DROP TABLE cart_snapshots;"),
			},
			wantErr: "is empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_cart_snapshots.up.sql": sqlFile("SELECT 1;"),
				"sql/migrations/0001_carts.down.sql":        sqlFile("SELECT 1;"),
			},
			wantErr: "name mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadMigrationsFromFS(tt.fsys)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
