package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_NoRowsIsSuccess(t *testing.T) {
	b := newBreaker(nil, time.Minute)
	for range 10 {
		err := b.run(func() error { return pgx.ErrNoRows })
		assert.ErrorIs(t, err, pgx.ErrNoRows)
	}
	assert.Equal(t, circuitbreaker.ClosedState, b.state())
}

func TestBreaker_OpensAndFailsFast(t *testing.T) {
	b := newBreaker(nil, time.Minute)
	for range 5 {
		_ = b.run(func() error { return errors.New("connection refused") })
	}
	require.Equal(t, circuitbreaker.OpenState, b.state())

	called := false
	err := b.run(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called)
}

func TestQueryVerb(t *testing.T) {
	tests := map[string]string{
		"SELECT score FROM karma":           "select",
		"\n  INSERT INTO karma VALUES ($1)": "insert",
		"":                                  "unknown",
	}
	for sql, want := range tests {
		assert.Equal(t, want, queryVerb(sql))
	}
}
