package migrations

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- leading comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE TABLE b (
    y String -- trailing
) ENGINE = Memory;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Contains(t, stmts[1], "y String")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s fine';"))
	assert.ErrorIs(t, validateNoSemicolonInStrings("SELECT 'a;b';"), errSemicolonInString)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":   {Data: []byte("CREATE TABLE b (x INT);")},
		"m/001_a.sql":   {Data: []byte("CREATE TABLE a (x INT);")},
		"m/003_c.sql":   {Data: []byte("  \n")},
		"m/README.md":   {Data: []byte("docs")},
		"m/sub/004.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a", got[0].Version)
	assert.Equal(t, "002_b", got[1].Version)

	_, err = Load(fsys, "missing")
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/burn_hook")
	require.NoError(t, err)
	assert.Equal(t, "burn_hook", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 2)
	assert.Equal(t, "001_hook_registries", pg[0].Version)
	assert.Equal(t, "002_watcher_progress", pg[1].Version)

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	require.NoError(t, validateNoSemicolonInStrings(ch[0].SQL))
	assert.Len(t, splitStatements(ch[0].SQL), 1)
}
