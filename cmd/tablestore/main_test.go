package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	store "github.com/likearthian/tablestore"
	"github.com/likearthian/tablestore/internal/config"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

func TestLoadSchema(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
		tables  []string
	}{
		{
			name: "yaml descriptor",
			file: "schema.yaml",
			content: `
tables:
  - name: users
    columns:
      - {name: id, data_type: serial, primary_key: true}
      - {name: name, data_type: varchar, length: 100, nullable: false}
      - {name: email, data_type: varchar, length: 100, unique: true}
  - name: posts
    columns:
      - {name: id, data_type: bigserial, primary_key: true}
      - {name: body, data_type: text}
`,
			tables: []string{"users", "posts"},
		},
		{
			name:    "json descriptor",
			file:    "schema.json",
			content: `{"tables": [{"name": "users", "columns": [{"name": "id", "data_type": "serial", "primary_key": true}]}]}`,
			tables:  []string{"users"},
		},
		{
			name:    "unsupported type",
			file:    "bad.yaml",
			content: "tables:\n  - name: users\n    columns:\n      - {name: id, data_type: money}\n",
			wantErr: "unsupported data type",
		},
		{
			name:    "no tables",
			file:    "empty.yaml",
			content: "tables: []\n",
			wantErr: "declares no tables",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			s, err := loadSchema(path)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.tables, store.Map(s.Tables, func(td store.TableDef) string { return td.Name }))
		})
	}

	t.Run("nullable flag is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.yaml")
		content := "tables:\n  - name: users\n    columns:\n      - {name: name, data_type: varchar, length: 10, nullable: false}\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		s, err := loadSchema(path)
		require.NoError(t, err)
		assert.False(t, s.Tables[0].Columns[0].IsNullable())
		assert.Equal(t, 10, s.Tables[0].Columns[0].Length)
	})
}

func TestRunDemo(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	c.DatabaseURL = "sqlite://:memory:"
	c.Retry.Backoff = 10 * time.Millisecond

	s, err := openStore(ctx, c)
	require.NoError(t, err)
	defer s.Close()

	rep, err := runDemo(ctx, s)
	require.NoError(t, err)

	require.Len(t, rep.Tables.Tables, 1)
	assert.True(t, rep.Tables.Tables[0].Created)
	assert.NotNil(t, rep.Inserted.ID())

	require.Len(t, rep.Selected, 1)
	assert.Equal(t, demoName, rep.Selected[0]["name"])
	assert.Equal(t, demoEmail, rep.Selected[0]["email"])
	assert.Equal(t, rep.Inserted.ID(), rep.Selected[0]["id"])

	assert.Equal(t, int64(1), rep.Updated.RowsAffected)
	require.Len(t, rep.Reselected, 1)
	assert.Equal(t, demoNewName, rep.Reselected[0]["name"])

	assert.True(t, rep.Exists)
	assert.Equal(t, int64(1), rep.Total)
	assert.Equal(t, int64(1), rep.Deleted.RowsAffected)
	assert.False(t, rep.ExistsAfterDelete)

	t.Run("second run finds the table already present", func(t *testing.T) {
		rep, err := runDemo(ctx, s)
		require.NoError(t, err)
		assert.True(t, rep.Tables.Tables[0].Existed)
	})
}

func TestOpenStore(t *testing.T) {
	t.Run("fails without a database URL", func(t *testing.T) {
		_, err := openStore(context.Background(), config.Default())
		assert.ErrorContains(t, err, "no database URL")
	})

	t.Run("does not retry an unsupported scheme forever", func(t *testing.T) {
		c := config.Default()
		c.DatabaseURL = "mysql://localhost/db"
		c.Retry.Backoff = time.Millisecond

		_, err := openStore(context.Background(), c)
		assert.ErrorIs(t, err, store.ErrConnection)
	})
}
