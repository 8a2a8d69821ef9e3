package kkex

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

// assertDecimal compares numerically so "2" equals "2.0".
func assertDecimal(t *testing.T, want string, got *apd.Decimal) {
	t.Helper()
	require.NotNil(t, got, "want %s, got nil", want)
	assert.Zero(t, dec(t, want).Cmp(got), "want %s, got %s", want, got.Text('f'))
}

func decodeMap(t *testing.T, js string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, jsonAPI.Unmarshal([]byte(js), &m))
	return m
}
