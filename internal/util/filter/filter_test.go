// Copyright (c) 2015-2020 InfluxData Inc. MIT License (MIT)
// https://github.com/influxdata/telegraf
package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEmptyIsNil(t *testing.T) {
	f, err := Compile(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestCompileExact(t *testing.T) {
	f, err := Compile([]string{"CI"})
	require.NoError(t, err)
	assert.True(t, f.Match("CI"))
	assert.False(t, f.Match("CIRCLECI"))

	f, err = Compile([]string{"CI", "NODE_ENV"})
	require.NoError(t, err)
	assert.True(t, f.Match("CI"))
	assert.True(t, f.Match("NODE_ENV"))
	assert.False(t, f.Match("HOME"))
}

func TestCompileGlob(t *testing.T) {
	f, err := Compile([]string{"DEPLOY_*"})
	require.NoError(t, err)
	assert.True(t, f.Match("DEPLOY_TARGET"))
	assert.True(t, f.Match("DEPLOY_"))
	assert.False(t, f.Match("REDEPLOY_TARGET"))
}

func TestCompileMixed(t *testing.T) {
	f, err := Compile([]string{"CI", "NEXT_PUBLIC_*"})
	require.NoError(t, err)
	assert.True(t, f.Match("CI"))
	assert.True(t, f.Match("NEXT_PUBLIC_API_URL"))
	assert.False(t, f.Match("NEXT_PRIVATE_KEY"))
}
