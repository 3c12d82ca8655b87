package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDArg(t *testing.T) {
	t.Run("explicit id wins", func(t *testing.T) {
		assert.Equal(t, "REQ-7", requestIDArg([]string{"manifest.csv", "REQ-7"}, 1))
	})

	t.Run("minted when omitted", func(t *testing.T) {
		got := requestIDArg([]string{"manifest.csv"}, 1)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
	})

	t.Run("each run gets its own id", func(t *testing.T) {
		a := requestIDArg([]string{"m"}, 1)
		b := requestIDArg([]string{"m"}, 1)
		assert.NotEqual(t, a, b)
	})
}

func TestCommandTreeWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["archive"])
	assert.True(t, names["restore"])

	sub := map[string]bool{}
	for _, c := range restoreCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["request"])
	assert.True(t, sub["download"])
}
