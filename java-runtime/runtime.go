package java_runtime

import (
	"context"
	"errors"
	"fmt"
	"github.com/Masterminds/semver/v3"
	"os/exec"
	"strings"
)

var ErrNoVersion = errors.New("no version in java output")

// Runtime is a probed java binary.
type Runtime struct {
	Location string
	// Version is the string printed by the binary, e.g. 1.8.0_392 or 17.0.9.
	Version string
	// Semver has the legacy 1.x scheme folded so that Major is the feature
	// release (1.8.0_392 becomes 8.0.0).
	Semver *semver.Version
}

// Detect runs `<location> -version` and parses its output.
func Detect(ctx context.Context, location string) (*Runtime, error) {
	if location == "" {
		location = "java"
	}
	// the version banner goes to stderr
	out, err := exec.CommandContext(ctx, location, "-version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("run %s -version: %w", location, err)
	}
	return Parse(location, string(out))
}

// Parse reads the banner printed by `java -version`.
func Parse(location, output string) (*Runtime, error) {
	version, err := ParseVersion(output)
	if err != nil {
		return nil, err
	}
	v, err := Normalize(version)
	if err != nil {
		return nil, err
	}
	return &Runtime{Location: location, Version: version, Semver: v}, nil
}

// ParseVersion extracts the word following "version ", without quotes.
func ParseVersion(output string) (string, error) {
	_, rest, ok := strings.Cut(output, "version ")
	if !ok {
		return "", ErrNoVersion
	}
	if line, _, ok := strings.Cut(rest, "\n"); ok {
		rest = line
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, `"`) {
		if end := strings.IndexByte(rest[1:], '"'); end != -1 {
			return rest[1 : end+1], nil
		}
	}
	if word, _, ok := strings.Cut(rest, " "); ok {
		rest = word
	}
	if rest == "" {
		return "", ErrNoVersion
	}
	return rest, nil
}

// Normalize turns a java version string into a semantic version.
func Normalize(version string) (*semver.Version, error) {
	numeric := version
	if i := strings.IndexFunc(numeric, func(r rune) bool { return (r < '0' || r > '9') && r != '.' }); i != -1 {
		numeric = numeric[:i]
	}
	parts := strings.Split(strings.Trim(numeric, "."), ".")
	if len(parts) > 1 && parts[0] == "1" {
		parts = parts[1:]
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, fmt.Errorf("invalid java version %q: %w", version, err)
	}
	return v, nil
}

func (r *Runtime) Major() int {
	return int(r.Semver.Major())
}

// Satisfies reports whether the runtime is at least the given feature
// release.
func (r *Runtime) Satisfies(major int) bool {
	c, err := semver.NewConstraint(fmt.Sprintf(">= %d", major))
	if err != nil {
		return false
	}
	return c.Check(r.Semver)
}
