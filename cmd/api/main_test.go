package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelock-backend/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEstimateCommand(t *testing.T) {
	out, err := execute(t, "estimate", "--model", "claude-3.5-sonnet", "--input", "1000000", "--output", "1000000")
	require.NoError(t, err)

	var body struct {
		Priced  string  `json:"priced"`
		CostUSD float64 `json:"cost_usd"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "claude-3-5-sonnet", body.Priced)
	assert.InDelta(t, 18.0, body.CostUSD, 1e-9)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	out, err := execute(t, "token", "--user", "7", "--ttl", "1h")
	require.NoError(t, err)

	uid, err := auth.ParseToken([]byte("cli-secret"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, 7, uid)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token", "--user", "7")
	assert.Error(t, err)
}
