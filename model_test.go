package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	DBTable   `schema:"billing" name:"accounts"`
	ID        int64  `db:"id,key auto"`
	Owner     string `db:"owner,size=100 unique"`
	Nickname  *string
	Balance   float64
	Active    bool
	Notes     sql.NullString
	CreatedAt time.Time
	Avatar    []byte
	internal  string
	Ignored   string `db:"-"`
}

type invoice struct {
	Number string `db:"number,key size=20 type=char"`
	Total  int
}

func (invoice) TableName() string { return "invoices_2024" }

type declared struct{}

func (declared) GetTableDef() TableDef {
	return TableDef{Name: "declared", Columns: []ColumnDef{{Name: "id", DataType: "uuid", PrimaryKey: true}}}
}

func TestTableDefFromModel(t *testing.T) {
	t.Run("Should derive columns from tags and Go types", func(t *testing.T) {
		td, err := TableDefFromModel(&account{})
		require.NoError(t, err)

		assert.Equal(t, "billing", td.Namespace)
		assert.Equal(t, "accounts", td.Name)
		assert.Equal(t, []ColumnDef{
			{Name: "id", DataType: TypeBigSerial, Nullable: Bool(false), PrimaryKey: true},
			{Name: "owner", DataType: TypeVarchar, Length: 100, Nullable: Bool(false), Unique: true},
			{Name: "nickname", DataType: TypeText, Nullable: Bool(true)},
			{Name: "balance", DataType: TypeDouble, Nullable: Bool(false)},
			{Name: "active", DataType: TypeBoolean, Nullable: Bool(false)},
			{Name: "notes", DataType: TypeText, Nullable: Bool(true)},
			{Name: "created_at", DataType: TypeTimestampTZ, Nullable: Bool(false)},
			{Name: "avatar", DataType: TypeBytea, Nullable: Bool(false)},
		}, td.Columns)
	})

	t.Run("Should use TableName and explicit types", func(t *testing.T) {
		td, err := TableDefFromModel(invoice{})
		require.NoError(t, err)

		assert.Equal(t, "invoices_2024", td.Name)
		assert.Equal(t, ColumnDef{Name: "number", DataType: "char", Length: 20, Nullable: Bool(false), PrimaryKey: true}, td.Columns[0])
		assert.Equal(t, TypeInteger, td.Columns[1].DataType)
	})

	t.Run("Should prefer a declared definition", func(t *testing.T) {
		td, err := TableDefFromModel(declared{})
		require.NoError(t, err)
		assert.Equal(t, "declared", td.Name)
	})

	t.Run("Should reject non-struct models", func(t *testing.T) {
		_, err := TableDefFromModel(42)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = TableDefFromModel(nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Should reject unsupported field types", func(t *testing.T) {
		type bad struct {
			Tags map[string]string
		}
		_, err := TableDefFromModel(bad{})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSchemaFromModel(t *testing.T) {
	s, err := SchemaFromModel(account{}, invoice{})
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	td, ok := s.Table("INVOICES_2024")
	require.True(t, ok)
	assert.Equal(t, []string{"number"}, td.KeyColumns())
}

func TestSchemaFromModel_CreatesTables(t *testing.T) {
	type note struct {
		ID   int    `db:"id,key auto"`
		Body string `db:"body"`
	}

	s, err := SchemaFromModel(note{})
	require.NoError(t, err)

	c := openTestClient(t)
	_, err = c.CreateTables(context.Background(), s)
	require.NoError(t, err)

	res, err := c.Insert(context.Background(), InsertRequest{Table: "note", Values: map[string]any{"body": "hello"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID())
}
