package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the
// current and home directories.
const DefaultConfigFile = ".dnsblcheck"

// XDGConfigFileName is the configuration file name inside XDGConfigDir.
const XDGConfigFileName = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Every field is optional; unset
// fields keep the value from the defaults.
type File struct {
	ServiceURL   string        `yaml:"serviceURL,omitempty"`
	FormField    string        `yaml:"formField,omitempty"`
	TableClass   string        `yaml:"tableClass,omitempty"`
	Digests      DigestFile    `yaml:"digests,omitempty"`
	Ignore       []string      `yaml:"ignore,omitempty"`
	Strategy     string        `yaml:"strategy,omitempty"`
	Concurrency  *int          `yaml:"concurrency,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	DrainTimeout time.Duration `yaml:"drainTimeout,omitempty"`
	RateLimit    float64       `yaml:"rateLimit,omitempty"`
	Proxy        string        `yaml:"proxy,omitempty"`
	UserAgent    string        `yaml:"userAgent,omitempty"`
	BatchSize    int           `yaml:"batchSize,omitempty"`
	DBDir        string        `yaml:"dbDir,omitempty"`
}

// DigestFile holds the reference digests in the configuration file.
type DigestFile struct {
	Clean  string `yaml:"clean,omitempty"`
	Listed string `yaml:"listed,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Apply copies the values set in f onto c.
// An "ignore" key that is present but empty clears the ignore list.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.ServiceURL != "" {
		c.ServiceURL = f.ServiceURL
	}
	if f.FormField != "" {
		c.FormField = f.FormField
	}
	if f.TableClass != "" {
		c.TableClass = f.TableClass
	}
	if f.Digests.Clean != "" {
		c.CleanDigest = f.Digests.Clean
	}
	if f.Digests.Listed != "" {
		c.ListedDigest = f.Digests.Listed
	}
	if f.Ignore != nil {
		c.IgnoreList = append([]string(nil), f.Ignore...)
	}
	if f.Strategy != "" {
		c.Strategy = f.Strategy
	}
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.DrainTimeout != 0 {
		c.DrainTimeout = f.DrainTimeout
	}
	if f.RateLimit != 0 {
		c.RateLimit = f.RateLimit
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.BatchSize != 0 {
		c.BatchSize = f.BatchSize
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, if given
//  2. .dnsblcheck in the current directory
//  3. config.yaml in the XDG config directory
//  4. .dnsblcheck in the user's home directory
//
// It returns the path of the first existing file, or "" if none exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), XDGConfigFileName))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
