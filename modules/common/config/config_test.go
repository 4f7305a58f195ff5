package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k1")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JUDGE_PROVIDER", "")

	cfg := FromEnv()
	assert.Equal(t, []string{"k1"}, cfg.GeminiAPIKeys)
	assert.Equal(t, 9.5, cfg.RefineTargetScore)
	assert.Equal(t, 6, cfg.RefineMaxIterations)
	assert.Equal(t, 2, cfg.RefineNoImprovementWindow)
	assert.Equal(t, "all", cfg.RefineEvaluateScope)
	assert.Equal(t, 9.0, cfg.TextTargetScore)
	assert.Equal(t, 3, cfg.TextMaxIterations)
	assert.Equal(t, 60*time.Second, cfg.ScriptTimeout)
	assert.Equal(t, "gemini", cfg.JudgeProvider)
	require.NoError(t, cfg.validate())
}

func TestFromEnvKeyListAndOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "a, b ,,c")
	t.Setenv("GEMINI_API_KEY", "b")
	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("SCRIPT_TIMEOUT", "15")
	t.Setenv("REFINE_EVALUATE_SCOPE", "FIRST")

	cfg := FromEnv()
	assert.Equal(t, []string{"a", "b", "c"}, cfg.GeminiAPIKeys)
	assert.Equal(t, "openai", cfg.JudgeProvider)
	assert.Equal(t, 15*time.Second, cfg.ScriptTimeout)
	assert.Equal(t, "first", cfg.RefineEvaluateScope)
}

func TestValidateRejectsBadScope(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("REFINE_EVALUATE_SCOPE", "some")
	assert.Error(t, FromEnv().validate())
}

func TestVertexBackendNeedsProjectNotKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_BACKEND", "vertex")

	t.Setenv("VERTEXAI_PROJECT", "")
	assert.Error(t, FromEnv().validate())

	t.Setenv("VERTEXAI_PROJECT", "poster-prod")
	cfg := FromEnv()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "us-central1", cfg.VertexLocation)
}
