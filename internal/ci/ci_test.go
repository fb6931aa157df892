package ci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// clearVendorEnv blanks every env var any vendor looks at, plus the
// generic markers, so the host's own CI environment can't leak in.
func clearVendorEnv(t *testing.T) {
	t.Helper()
	for _, v := range Vendors {
		for _, name := range v.EnvAny {
			t.Setenv(name, "")
		}
		for _, name := range v.EnvAll {
			t.Setenv(name, "")
		}
		for name := range v.EvalEnv {
			t.Setenv(name, "")
		}
	}
	for _, name := range genericEnvVars {
		t.Setenv(name, "")
	}
}

func TestNotCiWithCleanEnv(t *testing.T) {
	clearVendorEnv(t)
	assert.False(t, IsCi())
	assert.Equal(t, "", Name())
}

func TestGenericCiMarker(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("CI", "1")
	assert.True(t, IsCi())
}

func TestVendorDetection(t *testing.T) {
	cases := []struct {
		want string
		env  map[string]string
	}{
		{"GitHub Actions", map[string]string{"GITHUB_ACTIONS": "true"}},
		{"GitLab CI", map[string]string{"GITLAB_CI": "true"}},
		{"CircleCI", map[string]string{"CIRCLECI": "true"}},
		{"Vercel", map[string]string{"NOW_BUILDER": "1"}},
		{"AWS CodeBuild", map[string]string{"CODEBUILD_BUILD_ARN": "arn:aws:codebuild:..."}},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			clearVendorEnv(t)
			for name, value := range tc.env {
				t.Setenv(name, value)
			}
			assert.Equal(t, tc.want, Name())
			assert.True(t, IsCi())
		})
	}
}

func TestJenkinsNeedsBothMarkers(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("JENKINS_URL", "http://jenkins.local")
	assert.Equal(t, "", Name(), "JENKINS_URL alone is not enough")

	t.Setenv("BUILD_ID", "42")
	assert.Equal(t, "Jenkins", Name())
}
