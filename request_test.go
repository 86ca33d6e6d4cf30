package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	users := usersSchema().Tables[0]

	t.Run("Should copy terms instead of sharing them", func(t *testing.T) {
		terms := map[string]any{"name": "Ana"}
		f := Where(terms)
		g := f.And("email", "ana@example.com")
		terms["id"] = 1

		assert.Equal(t, []string{"name"}, f.Columns())
		assert.Equal(t, []string{"email", "name"}, g.Columns())
	})

	t.Run("Should resolve terms to declared column names", func(t *testing.T) {
		f, err := Eq("EMAIL", "a@b.c").resolve("select", users)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", f.Value("email"))
	})

	t.Run("Should render a readable form", func(t *testing.T) {
		assert.Equal(t, "ALL", MatchAll().String())
		assert.Equal(t, "email=a AND name=b", Eq("name", "b").And("email", "a").String())
	})

	rejected := map[string]Filter{
		"zero filter":         {},
		"empty map":           Where(map[string]any{}),
		"nil map":             Where(nil),
		"unknown column":      Eq("age", 1),
		"empty list":          Eq("name", []any{}),
		"match all and terms": {all: true, terms: map[string]any{"name": "x"}},
		"column given twice":  Where(map[string]any{"email": "a@e", "EMAIL": "zzz"}),
	}
	for name, f := range rejected {
		t.Run("Should reject "+name, func(t *testing.T) {
			_, err := f.resolve("delete", users)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("Should accept MatchAll", func(t *testing.T) {
		f, err := MatchAll().resolve("delete", users)
		require.NoError(t, err)
		assert.True(t, f.IsMatchAll())
	})
}

func TestResolveValues(t *testing.T) {
	users := usersSchema().Tables[0]

	t.Run("Should key values by declared column names", func(t *testing.T) {
		vals, err := resolveValues("insert", users, map[string]any{"NAME": "Ana", "Email": nil})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Ana", "email": nil}, vals)
	})

	t.Run("Should reject a column given twice", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			_, err := resolveValues("update", users, map[string]any{"name": "A", "NAME": "B"})
			require.ErrorIs(t, err, ErrValidation)
		}
	})

	t.Run("Should reject a projection naming a column twice", func(t *testing.T) {
		_, err := resolveColumns("select", users, []string{"id", "ID"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestIsListValue(t *testing.T) {
	assert.True(t, isListValue([]string{"a"}))
	assert.True(t, isListValue([2]int{1, 2}))
	assert.False(t, isListValue([]byte("abc")))
	assert.False(t, isListValue("abc"))
	assert.False(t, isListValue(nil))
}

func TestResolveOrder(t *testing.T) {
	users := usersSchema().Tables[0]

	t.Run("Should default to the primary key", func(t *testing.T) {
		terms, err := resolveOrder("select", users, nil)
		require.NoError(t, err)
		assert.Equal(t, []sortTerm{{column: "id"}}, terms)
	})

	t.Run("Should honour direction prefixes", func(t *testing.T) {
		terms, err := resolveOrder("select", users, []string{"-Name", "+email", " "})
		require.NoError(t, err)
		assert.Equal(t, []sortTerm{{column: "name", desc: true}, {column: "email"}}, terms)
		assert.Equal(t, []string{`"name" DESC`, `"email" ASC`}, makeSortClause(postgresDialect{}, terms))
	})
}

func TestWhereClause(t *testing.T) {
	c := &Client{dialect: postgresDialect{}}
	users := usersSchema().Tables[0]

	f, err := Where(map[string]any{
		"name":  FilterStringContainsFrom("an"),
		"email": FilterNullFrom(false),
		"id":    []int{1, 2},
	}).resolve("select", users)
	require.NoError(t, err)

	sqlStr, args, err := c.whereClause(f).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `("email" IS NOT NULL AND "id" IN (?,?) AND "name" LIKE ? ESCAPE '\')`, sqlStr)
	assert.Equal(t, []any{1, 2, "%an%"}, args)

	assert.Nil(t, c.whereClause(MatchAll()))

	t.Run("Should escape LIKE wildcards on postgres", func(t *testing.T) {
		_, args, err := c.whereClause(Eq("name", FilterStringContainsFrom(`50%_a\b`))).ToSql()
		require.NoError(t, err)
		assert.Equal(t, []any{`%50\%\_a\\b%`}, args)
	})

	t.Run("Should use instr on sqlite", func(t *testing.T) {
		sc := &Client{dialect: sqliteDialect{}}
		sqlStr, args, err := sc.whereClause(Eq("name", FilterStringContainsFrom("a_b"))).ToSql()
		require.NoError(t, err)
		assert.Equal(t, `(instr("name", ?) > 0)`, sqlStr)
		assert.Equal(t, []any{"a_b"}, args)
	})
}
