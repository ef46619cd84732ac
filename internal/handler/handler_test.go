package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: payout_id is required", logic.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: completed", logic.ErrInvalidTransition), http.StatusBadRequest},
		{logic.ErrBelowMinimum, http.StatusBadRequest},
		{logic.ErrUnauthorized, http.StatusUnauthorized},
		{logic.ErrForbidden, http.StatusForbidden},
		{logic.ErrNotFound, http.StatusNotFound},
		{logic.ErrBusy, http.StatusConflict},
		{logic.ErrDispatchFailed, http.StatusInternalServerError},
		{fmt.Errorf("database is locked"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, statusOf(tc.err), tc.err.Error())
	}
}

func TestParseOptionalTime(t *testing.T) {
	got, err := parseOptionalTime("period_start", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseOptionalTime("period_start", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseOptionalTime("period_start", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *got)

	_, err = parseOptionalTime("period_start", "soon")
	assert.ErrorIs(t, err, logic.ErrInvalidInput)
}

func TestParseBool(t *testing.T) {
	for input, expected := range map[interface{}]bool{true: true, "true": true, "1": true, "false": false, 0: false} {
		got, err := parseBool("bypass_minimum", input)
		require.NoError(t, err)
		assert.Equal(t, expected, got, input)
	}

	got, err := parseBool("bypass_minimum", nil)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = parseBool("bypass_minimum", "maybe")
	assert.ErrorIs(t, err, logic.ErrInvalidInput)
}

func TestNewPagination(t *testing.T) {
	p := newPagination(2, 20, 41)
	assert.Equal(t, int64(3), p.TotalPage)
	assert.Equal(t, int64(0), newPagination(1, 20, 0).TotalPage)
}
