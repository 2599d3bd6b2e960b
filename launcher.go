package mc_launcher

import (
	"path/filepath"
	"strings"
)

// Settings holds the launcher wide options shared by every launch.
type Settings struct {
	Root          string `yaml:"root"`
	ManifestUrl   string `yaml:"manifestUrl"`
	AssetHost     string `yaml:"assetHost"`
	LibrariesHost string `yaml:"librariesHost"`
	ClientId      string `yaml:"clientId"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Fullscreen    bool   `yaml:"fullscreen"`
	Demo          bool   `yaml:"demo"`
}

func (s Settings) VersionsDir() string  { return filepath.Join(s.Root, "versions") }
func (s Settings) LibrariesDir() string { return filepath.Join(s.Root, "libraries") }
func (s Settings) AssetsDir() string    { return filepath.Join(s.Root, "assets") }
func (s Settings) NativesDir() string   { return filepath.Join(s.Root, "natives") }

// State is the set of settings, instances and accounts owned by the entry
// point. Structural changes (adding or removing instances and accounts) are
// made by the owner only; background launches write account token fields.
type State struct {
	Settings  Settings
	Instances []*Instance
	Accounts  []*Account
}

// Instance looks up an instance by name, ignoring case.
func (s *State) Instance(name string) *Instance {
	for _, i := range s.Instances {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// Account looks up an account by id, falling back to a case-insensitive
// name match.
func (s *State) Account(idOrName string) *Account {
	for _, a := range s.Accounts {
		if a.Id == idOrName {
			return a
		}
	}
	for _, a := range s.Accounts {
		if strings.EqualFold(a.Name, idOrName) {
			return a
		}
	}
	return nil
}

func (s *State) AddAccount(a *Account) {
	s.Accounts = append(s.Accounts, a)
}

// Instance is a game directory bound to a version with per-instance overrides.
type Instance struct {
	Name          string   `toml:"name"`
	Location      string   `toml:"location"`
	Version       string   `toml:"version"`
	JavaLocation  string   `toml:"java"`
	Icon          string   `toml:"icon"`
	ExtraGameArgs []string `toml:"gameArgs"`
	JvmArgs       []string `toml:"jvmArgs"`

	listeners Listeners[*Instance]
}

// SetIcon updates the icon and notifies subscribers, so list views can
// refresh the row live.
func (i *Instance) SetIcon(icon string) {
	i.Icon = icon
	i.listeners.Notify(i)
}

func (i *Instance) OnChange(fn func(*Instance)) (unsubscribe func()) {
	return i.listeners.Subscribe(fn)
}

// Events receives every user facing effect of the launch pipeline. Calls
// arrive on the background goroutine running the launch; implementations
// marshal them onto their own loop.
type Events interface {
	Progress(fraction float64, label string)
	// Stage announces the current phase, an empty label clears it.
	Stage(label string)
	Error(message string)
	ProcessStarted(pid int)
	ProcessExited(code int)
	ProcessFinished()
}

type NopEvents struct{}

var _ Events = NopEvents{}

func (NopEvents) Progress(float64, string) {}
func (NopEvents) Stage(string)             {}
func (NopEvents) Error(string)             {}
func (NopEvents) ProcessStarted(int)       {}
func (NopEvents) ProcessExited(int)        {}
func (NopEvents) ProcessFinished()         {}
