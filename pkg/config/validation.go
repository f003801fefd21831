package config

import (
	"net/url"

	"gopkg.in/yaml.v3"
)

const redactedValue = "***"

// Redacted returns a copy of the configuration with credentials masked.
// Passwords embedded in database.url are replaced with "xxxxx".
func (c *Config) Redacted() Config {
	out := *c
	db := &out.Database
	if db.SecretAccessKey != "" {
		db.SecretAccessKey = redactedValue
	}
	if db.SessionToken != "" {
		db.SessionToken = redactedValue
	}
	if u, err := url.Parse(db.URL); err == nil {
		db.URL = u.Redacted()
	}
	return out
}

// String renders the redacted configuration as YAML.
func (c *Config) String() string {
	redacted := c.Redacted()
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return err.Error()
	}
	return string(out)
}
