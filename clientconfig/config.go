// Package clientconfig loads the backup client's configuration from a
// YAML file, following the key/value-with-defaults pattern used by
// upspin's own config package but with a typed struct in place of a
// generic value map, since the client's configuration surface is fixed
// and small.
package clientconfig

import (
	"io"
	"os"
	osuser "os/user"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"

	"github.com/xatophi/remote-backup-pds-project/errors"
)

// Config holds everything needed to start a backup client.
type Config struct {
	Address     string `yaml:"address"`
	Port        int    `yaml:"port"`
	BackupPath  string `yaml:"backup_path"`
	Username    string `yaml:"username"`
	DelayMillis int    `yaml:"delay_ms"`
	RetryBudget int    `yaml:"retry_budget"`

	// Token is never read from the file; it is populated at runtime by
	// a successful login and kept only in memory.
	Token string `yaml:"-"`
}

const (
	defaultDelayMillis = 5000
	defaultRetryBudget = 5
	defaultPort        = 8443
)

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.DelayMillis == 0 {
		c.DelayMillis = defaultDelayMillis
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = defaultRetryBudget
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
}

// validate checks that the fields required to dial a server and watch
// a path are present.
func (c *Config) validate() error {
	const op = "clientconfig.validate"
	switch {
	case c.Address == "":
		return errors.E(op, errors.Protocol, errors.Str("missing required field: address"))
	case c.BackupPath == "":
		return errors.E(op, errors.Protocol, errors.Str("missing required field: backup_path"))
	case c.Username == "":
		return errors.E(op, errors.Protocol, errors.Str("missing required field: username"))
	}
	return nil
}

// FromFile reads and parses the configuration at path. If path is
// empty, it falls back to $HOME/.backup/client.yaml.
func FromFile(path string) (*Config, error) {
	const op = "clientconfig.FromFile"

	if path == "" {
		home, err := Homedir()
		if err != nil {
			return nil, errors.E(op, err)
		}
		path = filepath.Join(home, ".backup", "client.yaml")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(op, errors.Other, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a client configuration from r.
func Parse(r io.Reader) (*Config, error) {
	const op = "clientconfig.Parse"

	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.E(op, errors.Protocol, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return &cfg, nil
}

// Homedir returns the current user's home directory.
func Homedir() (string, error) {
	u, err := osuser.Current()
	if u == nil {
		e := errors.Str("lookup of current user failed")
		if err != nil {
			e = errors.Errorf("%v: %v", e, err)
		}
		return "", e
	}
	if u.HomeDir == "" {
		return "", errors.E(errors.Other, errors.Str("user home directory not found"))
	}
	return u.HomeDir, nil
}
