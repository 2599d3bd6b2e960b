package main

import (
	"errors"
	"fmt"
	"github.com/BurntSushi/toml"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type instancesFile struct {
	Instances []*mc_launcher.Instance `toml:"instance"`
}

type accountsFile struct {
	Accounts []*mc_launcher.Account `yaml:"accounts"`
}

// loadState reads the instance and account files named by the config. Missing
// files mean no instances or accounts.
func loadState(conf *Config) (*mc_launcher.State, error) {
	state := &mc_launcher.State{Settings: conf.Settings}

	var instances instancesFile
	_, err := toml.DecodeFile(conf.Instances, &instances)
	switch {
	case err == nil:
		state.Instances = instances.Instances
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("load instances: %w", err)
	}
	for _, i := range state.Instances {
		if i.Location != "" {
			i.Location = resolvePath(filepath.Dir(conf.Instances), i.Location)
		}
	}

	var accounts accountsFile
	file, err := os.Open(conf.Accounts)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&accounts); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("load accounts: %w", err)
		}
		state.Accounts = accounts.Accounts
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return state, nil
}

// saveAccounts writes the accounts next to the old file and renames it into
// place.
func saveAccounts(p string, accounts []*mc_launcher.Account) error {
	out, err := yaml.Marshal(accountsFile{Accounts: accounts})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
