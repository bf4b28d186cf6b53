// CLAUDE:SUMMARY Configuration structs (heal policy, generator, browser) and YAML loader for relocator.
package relocator

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/relocator/heal"
)

// Config holds all relocator configuration.
type Config struct {
	DBPath string `yaml:"db_path"`

	// Scheme is the selector prefix of the resilient engine. Default: "resloc".
	Scheme string `yaml:"scheme"`

	// Delimiters split generated ids into a stable prefix and a volatile
	// suffix. Default: ":".
	Delimiters string `yaml:"delimiters"`

	Heal    HealConfig    `yaml:"heal"`
	Browser BrowserConfig `yaml:"browser"`
}

// HealConfig bounds self-heal cycles.
type HealConfig struct {
	// MaxRetries is the number of extra proposals after the first.
	// 0 means the default (1); a negative value disables retries.
	MaxRetries      int           `yaml:"max_retries"`
	ProposalTimeout time.Duration `yaml:"proposal_timeout"`
	LogExcerptBytes int           `yaml:"log_excerpt_bytes"`
	SnapshotBytes   int           `yaml:"snapshot_bytes"`
}

// BrowserConfig controls the live DOM collaborator.
type BrowserConfig struct {
	// RemoteURL connects to a running Chrome DevTools endpoint instead of
	// launching a local browser.
	RemoteURL       string        `yaml:"remote_url"`
	Headless        *bool         `yaml:"headless"`
	Stealth         bool          `yaml:"stealth"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`

	// ResourceBlocking lists resource types not loaded by live pages
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string `yaml:"resource_blocking"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "relocator.db"
	}
	if c.Scheme == "" {
		c.Scheme = "resloc"
	}
	if c.Delimiters == "" {
		c.Delimiters = ":"
	}
	d := heal.DefaultPolicy()
	switch {
	case c.Heal.MaxRetries == 0:
		c.Heal.MaxRetries = d.MaxRetries
	case c.Heal.MaxRetries < 0:
		c.Heal.MaxRetries = -1
	}
	if c.Heal.ProposalTimeout <= 0 {
		c.Heal.ProposalTimeout = d.ProposalTimeout
	}
	if c.Heal.LogExcerptBytes <= 0 {
		c.Heal.LogExcerptBytes = d.LogExcerptBytes
	}
	if c.Heal.SnapshotBytes <= 0 {
		c.Heal.SnapshotBytes = d.SnapshotBytes
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
}

// policy converts the heal section to a heal.Policy.
func (c *Config) policy() heal.Policy {
	p := heal.Policy{
		MaxRetries:      c.Heal.MaxRetries,
		ProposalTimeout: c.Heal.ProposalTimeout,
		LogExcerptBytes: c.Heal.LogExcerptBytes,
		SnapshotBytes:   c.Heal.SnapshotBytes,
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
