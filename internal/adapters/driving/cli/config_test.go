package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

func TestConfigCmd_SetGetUnset(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "config", "get", "token.margin")
	require.NoError(t, err)
	assert.Contains(t, out, "not set")

	out, err = execute(t, "config", "set", "token.margin", "90s")
	require.NoError(t, err)
	assert.Contains(t, out, "token.margin updated in :memory:")

	out, err = execute(t, "config", "get", "token.margin")
	require.NoError(t, err)
	assert.Equal(t, "1m30s\n", out)

	_, err = execute(t, "config", "unset", "token.margin")
	require.NoError(t, err)

	out, err = execute(t, "config", "get", "token.margin")
	require.NoError(t, err)
	assert.Contains(t, out, "not set")
}

func TestConfigCmd_SetRejectsInvalid(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "config", "set", "dispatcher.max_attempts", "0")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "config", "set", "no.such.key", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigCmd_List(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "config", "set", "scopes", domain.ScopePickerReadonly)
	require.NoError(t, err)

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "storage.backend")
	assert.Contains(t, out, "(default)")

	out, err = execute(t, "config", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"scopes": [`)
	assert.NotContains(t, out, "storage.backend")
}

func TestConfigCmd_Path(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, ":memory:\n", out)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "a,b", formatValue([]string{"a", "b"}))
	assert.Equal(t, "1,x", formatValue([]any{1, "x"}))
	assert.Equal(t, "42", formatValue(int64(42)))
}

func TestHasAnnotation(t *testing.T) {
	assert.True(t, hasAnnotation(configSetCmd, annotationConfigOnly))
	assert.False(t, hasAnnotation(pickCmd, annotationConfigOnly))
	assert.True(t, hasAnnotation(versionCmd, annotationNoSetup))
}
