package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", NormalizeAddr("8080"))
	assert.Equal(t, ":8080", NormalizeAddr(":8080"))
	assert.Equal(t, "0.0.0.0:8080", NormalizeAddr("0.0.0.0:8080"))
	assert.Equal(t, "", NormalizeAddr(""))
}

func TestLoad_BarePortBecomesListenAddr(t *testing.T) {
	t.Setenv("PORT", "9090")
	assert.Equal(t, ":9090", Load().Port)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("EXPLORE_MAX_STEPS", "")
	t.Setenv("CLONE_GRACE", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.CloneGrace)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("EXPLORE_MAX_STEPS", "zero")
	t.Setenv("CLONE_GRACE", "-5s")

	cfg := Load()
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.CloneGrace)
}
