package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("Should match only the sentinel of its kind", func(t *testing.T) {
		err := newError(KindConstraint, "insert", "users", "duplicate email")

		assert.ErrorIs(t, err, ErrConstraint)
		assert.NotErrorIs(t, err, ErrValidation)
		assert.Equal(t, KindConstraint, KindOf(fmt.Errorf("wrapped: %w", err)))
	})

	t.Run("Should format op, table, message and cause", func(t *testing.T) {
		cause := errors.New("driver says no")

		assert.Equal(t, "insert users: constraint violation: driver says no",
			wrapError(KindConstraint, "insert", "users", cause).Error())
		assert.Equal(t, "close: client is closed", wrapError(KindClosed, "close", "", nil).Error())
		assert.Equal(t, "select users: unknown column \"age\"",
			validationErrorf("select", "users", "unknown column %q", "age").Error())
	})

	t.Run("Should unwrap to the backend error", func(t *testing.T) {
		cause := errors.New("driver says no")
		assert.ErrorIs(t, wrapError(KindConnection, "open", "", cause), cause)
	})

	t.Run("Should report no kind for foreign errors", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
		assert.Equal(t, Kind(""), KindOf(nil))
	})
}

func TestClassify(t *testing.T) {
	never := func(error) Kind { return "" }

	testCases := []struct {
		name      string
		err       error
		translate func(error) Kind
		want      error
	}{
		{"Should map a deadline to timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), never, ErrTimeout},
		{"Should map a closed connection to connection", sql.ErrConnDone, never, ErrConnection},
		{"Should use the dialect translation", errors.New("unique"), func(error) Kind { return KindConstraint }, ErrConstraint},
		{"Should report unrecognised failures as backend errors", errors.New("disk full"), never, ErrBackend},
		{"Should keep an existing store error", newError(KindSchema, "create tables", "t", "x"), func(error) Kind { return KindConstraint }, ErrSchema},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", "t", tc.err, tc.translate), tc.want)
		})
	}

	t.Run("Should pass nil through", func(t *testing.T) {
		assert.NoError(t, classify("op", "t", nil, never))
	})
}
