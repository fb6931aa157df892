// Package ci detects whether the runner is executing under a CI
// provider, which switches off interactive output like the spinner.
// A condensed port of https://github.com/watson/ci-info.
package ci

import "os"

// Vendor identifies one CI provider by the environment it sets.
type Vendor struct {
	Name     string
	Constant string

	// EnvAny marks the vendor present when any of these vars is set.
	EnvAny []string
	// EnvAll marks the vendor present only when all of these are set.
	EnvAll []string
	// EvalEnv marks the vendor present on an exact name=value match.
	EvalEnv map[string]string
}

func (v Vendor) matches() bool {
	for name, value := range v.EvalEnv {
		if os.Getenv(name) == value {
			return true
		}
	}
	for _, name := range v.EnvAny {
		if os.Getenv(name) != "" {
			return true
		}
	}
	if len(v.EnvAll) > 0 {
		for _, name := range v.EnvAll {
			if os.Getenv(name) == "" {
				return false
			}
		}
		return true
	}
	return false
}

// genericEnvVars are set by most CI systems whether or not a specific
// vendor is recognized.
var genericEnvVars = []string{"CI", "BUILD_ID", "BUILD_NUMBER", "CI_NAME", "CONTINUOUS_INTEGRATION", "TEAMCITY_VERSION"}

// IsCi reports whether the process appears to run in CI.
func IsCi() bool {
	for _, name := range genericEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return Info().Name != ""
}

// Name returns the detected CI vendor's name, or "".
func Name() string {
	return Info().Name
}

// Info returns the first vendor whose environment markers match.
func Info() Vendor {
	for _, v := range Vendors {
		if v.matches() {
			return v
		}
	}
	return Vendor{}
}
