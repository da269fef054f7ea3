package oxidation

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFlake_SQLTextColumn(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE events (id TEXT PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)

	eng, err := New(DefaultEpoch, HardwareWorkerID())
	require.NoError(t, err)

	flakes, err := eng.OxidizeBatch(context.Background(), 50)
	require.NoError(t, err)
	for i, f := range flakes {
		_, err := db.Exec(`INSERT INTO events (id, name) VALUES (?, ?)`, f, "event")
		require.NoError(t, err, "insert %d", i)
	}

	for _, want := range flakes {
		var got Flake
		var stored string
		err := db.QueryRow(`SELECT id, id FROM events WHERE id = ?`, want).Scan(&got, &stored)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want.Decimal(), stored, "storage form is decimal text")
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(DISTINCT id) FROM events`).Scan(&count))
	assert.Equal(t, len(flakes), count)
}

func TestFlake_SQLIntegerColumn(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)

	cfg := DefaultConfig(DefaultEpoch, 42)
	cfg.Layout = LayoutSnowflake
	eng, err := NewWithConfig(cfg)
	require.NoError(t, err)

	flakes, err := eng.OxidizeBatch(context.Background(), 20)
	require.NoError(t, err)
	for _, f := range flakes {
		_, err := db.Exec(`INSERT INTO users (id, email) VALUES (?, ?)`, f, f.Base62()+"@example.com")
		require.NoError(t, err)
	}

	rows, err := db.Query(`SELECT id, typeof(id) FROM users ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var got []Flake
	for rows.Next() {
		var f Flake
		var kind string
		require.NoError(t, rows.Scan(&f, &kind))
		assert.Equal(t, "integer", kind)
		got = append(got, f)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, flakes, got, "integer ordering matches issuance order")
}

func TestFlake_SQLNull(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE refs (parent TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO refs (parent) VALUES (NULL)`)
	require.NoError(t, err)

	f := FlakeFromUint64(99)
	require.NoError(t, db.QueryRow(`SELECT parent FROM refs`).Scan(&f))
	assert.True(t, f.IsZero())
}

func TestFlake_SQLRejectsGarbage(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE refs (parent TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO refs (parent) VALUES ('not a flake')`)
	require.NoError(t, err)

	var f Flake
	err = db.QueryRow(`SELECT parent FROM refs`).Scan(&f)
	assert.ErrorIs(t, err, ErrInvalidFlake)
}
