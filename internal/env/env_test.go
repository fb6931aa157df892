package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() Map {
	return fromPairs([]string{
		"CI=true",
		"HOME=/home/someone",
		"DEPLOY_TARGET=staging",
		"DEPLOY_SECRET=hunter2",
		"PATH=/usr/bin:/bin",
	})
}

func TestSelectLiteralNames(t *testing.T) {
	selected, err := testEnv().Select([]string{"CI", "HOME"})
	require.NoError(t, err)
	assert.Equal(t, Map{"CI": "true", "HOME": "/home/someone"}, selected)
}

func TestSelectUnsetLiteralIsKeptAsEmpty(t *testing.T) {
	selected, err := testEnv().Select([]string{"NOT_SET"})
	require.NoError(t, err)
	value, ok := selected["NOT_SET"]
	assert.True(t, ok, "an unset literal still occupies a manifest line")
	assert.Equal(t, "", value)
}

func TestSelectWildcard(t *testing.T) {
	selected, err := testEnv().Select([]string{"DEPLOY_*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DEPLOY_SECRET", "DEPLOY_TARGET"}, selected.Names())
}

func TestSelectExclusionWinsOverInclusion(t *testing.T) {
	selected, err := testEnv().Select([]string{"DEPLOY_*", "!DEPLOY_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DEPLOY_TARGET"}, selected.Names())
}

func TestSelectExclusionWinsOverLiteral(t *testing.T) {
	selected, err := testEnv().Select([]string{"CI", "DEPLOY_SECRET", "!DEPLOY_*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CI"}, selected.Names())
}

func TestSelectWildcardDoesNotInventUnsetVars(t *testing.T) {
	selected, err := testEnv().Select([]string{"VERCEL_*"})
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestSelectEmptyPatterns(t *testing.T) {
	selected, err := testEnv().Select(nil)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestNamesSorted(t *testing.T) {
	m := fromPairs([]string{"B=2", "A=1", "C=3"})
	assert.Equal(t, []string{"A", "B", "C"}, m.Names())
}
