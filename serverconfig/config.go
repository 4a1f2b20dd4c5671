// Package serverconfig loads the backup server's configuration from a
// YAML file, mirroring clientconfig's pattern.
package serverconfig

import (
	"io"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/xatophi/remote-backup-pds-project/errors"
)

// Config holds everything needed to start a backup server.
type Config struct {
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	Threads    int    `yaml:"threads"`
	BackupPath string `yaml:"backuppath"`
	DBPath     string `yaml:"dbpath"`
}

const (
	defaultPort    = 8443
	defaultThreads = 8
)

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Threads == 0 {
		c.Threads = defaultThreads
	}
}

func (c *Config) validate() error {
	const op = "serverconfig.validate"
	switch {
	case c.BackupPath == "":
		return errors.E(op, errors.Protocol, errors.Str("missing required field: backuppath"))
	case c.DBPath == "":
		return errors.E(op, errors.Protocol, errors.Str("missing required field: dbpath"))
	}
	return nil
}

// FromFile reads and parses the server configuration at path.
func FromFile(path string) (*Config, error) {
	const op = "serverconfig.FromFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(op, errors.Other, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a server configuration from r.
func Parse(r io.Reader) (*Config, error) {
	const op = "serverconfig.Parse"

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
