package rules

import (
	mapset "github.com/deckarep/golang-set/v2"
	"runtime"
)

const (
	ActionAllow    = "allow"
	ActionDisallow = "disallow"
)

// Rule is a conditional allow/disallow clause from a version descriptor.
type Rule struct {
	Action   string          `json:"action"`
	Os       *OsRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

type OsRule struct {
	Name string `json:"name,omitempty"`
	Arch string `json:"arch,omitempty"`
}

// Platform uses the same names as the JVM os.name and os.arch properties.
type Platform struct {
	Name string
	Arch string
}

// CurrentPlatform maps the Go runtime target onto JVM naming.
func CurrentPlatform() Platform {
	return Platform{Name: osName(runtime.GOOS), Arch: osArch(runtime.GOOS, runtime.GOARCH)}
}

func osName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	case "windows", "linux":
		return goos
	default:
		return "unknown"
	}
}

func osArch(goos, goarch string) string {
	switch goarch {
	case "amd64":
		return "amd64"
	case "386":
		if goos == "windows" {
			return "x86"
		}
		return "i386"
	case "arm64":
		return "aarch64"
	case "arm":
		return "arm"
	default:
		return "unknown"
	}
}

// Bits is the value substituted for ${arch} in natives classifiers.
func (p Platform) Bits() string {
	switch p.Arch {
	case "x86", "i386", "arm":
		return "32"
	default:
		return "64"
	}
}

// Features is the set of feature flags active for a launch.
type Features = mapset.Set[string]

func NewFeatures(names ...string) Features {
	return mapset.NewThreadUnsafeSet[string](names...)
}

type Evaluator struct {
	Platform Platform
}

func NewEvaluator() Evaluator {
	return Evaluator{Platform: CurrentPlatform()}
}

// Allowed reports whether a rule list permits its owner. An empty list is
// allowed. Otherwise the decision starts as disallow and every matching
// rule overwrites it, so the last match wins.
func (e Evaluator) Allowed(rules []Rule, features Features) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range rules {
		if e.matches(r, features) {
			allowed = r.Action == ActionAllow
		}
	}
	return allowed
}

func (e Evaluator) matches(r Rule, features Features) bool {
	if r.Os != nil {
		if r.Os.Name != "" && r.Os.Name != e.Platform.Name {
			return false
		}
		if r.Os.Arch != "" && r.Os.Arch != e.Platform.Arch {
			return false
		}
	}
	if r.Features != nil {
		if features == nil {
			return false
		}
		for name, want := range r.Features {
			if !want || !features.Contains(name) {
				return false
			}
		}
	}
	return true
}
