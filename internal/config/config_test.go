package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisposalPolicyDefaults(t *testing.T) {
	p := DisposalPolicy{
		Reasons: csv("DISPOSAL_REASONS", defaultDisposalReasons),
		Methods: csv("DISPOSAL_METHODS", defaultDisposalMethods),
	}
	require.True(t, p.ValidReason("Expired"))
	require.True(t, p.ValidReason("  Expired  ")) // surrounding whitespace tolerated
	require.True(t, p.ValidMethod("Biohazard Autoclave"))
	require.False(t, p.ValidReason("expired")) // membership is case-sensitive
	require.False(t, p.ValidMethod("Trash"))
}

func TestDisposalPolicyFromEnv(t *testing.T) {
	t.Setenv("DISPOSAL_REASONS", "Spillage, Recalled ,,")
	t.Setenv("DISPOSAL_METHODS", "Deep Burial")

	p := DisposalPolicy{
		Reasons: csv("DISPOSAL_REASONS", defaultDisposalReasons),
		Methods: csv("DISPOSAL_METHODS", defaultDisposalMethods),
	}
	require.Equal(t, []string{"Spillage", "Recalled"}, p.Reasons)
	require.True(t, p.ValidMethod("Deep Burial"))
	require.False(t, p.ValidReason("Expired")) // defaults replaced, not merged
}

func TestRateLimitConfigClamping(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	require.Equal(t, 1, cfg.Capacity)
	require.Equal(t, 2*time.Second, cfg.RefillInterval)
	require.Equal(t, 10*time.Second, cfg.TTL) // raised to 5x the refill interval
}
