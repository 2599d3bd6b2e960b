package main

import (
	"errors"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
)

type Config struct {
	mc_launcher.Settings `yaml:",inline"`
	Instances            string `yaml:"instances"`
	Accounts             string `yaml:"accounts"`
}

// defaultRoot is $XDG_DATA_HOME/mc-launcher, falling back to
// ~/.local/share/mc-launcher.
func defaultRoot() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mc-launcher"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mc-launcher"), nil
}

// withDefaults fills empty keys. Relative paths are resolved against wd, the
// directory holding the config file.
func (c Config) withDefaults(wd string) (Config, error) {
	if c.Root == "" {
		root, err := defaultRoot()
		if err != nil {
			return c, err
		}
		c.Root = root
	}
	c.Root = resolvePath(wd, c.Root)
	if c.Instances == "" {
		c.Instances = filepath.Join(c.Root, "instances.toml")
	}
	if c.Accounts == "" {
		c.Accounts = filepath.Join(c.Root, "accounts.yml")
	}
	c.Instances = resolvePath(wd, c.Instances)
	c.Accounts = resolvePath(wd, c.Accounts)
	return c, nil
}

func resolvePath(wd, p string) string {
	if filepath.IsAbs(p) || wd == "" {
		return p
	}
	return filepath.Join(wd, p)
}

func loadConfig[T any](ptr *atomic.Pointer[T], p string) error {
	var c T
	file, err := os.Open(p)
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	ptr.Store(&c)
	return nil
}

// loadLauncherConfig reads config.yml. A missing file at the default location
// means all defaults.
func loadLauncherConfig(ptr *atomic.Pointer[Config], p string, explicit bool) error {
	err := loadConfig[Config](ptr, p)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		ptr.Store(&Config{})
	default:
		return err
	}
	c, err := ptr.Load().withDefaults(filepath.Dir(p))
	if err != nil {
		return err
	}
	ptr.Store(&c)
	return nil
}
