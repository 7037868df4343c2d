package llm

import (
	"fmt"
)

const (
	DefaultSiteURL = "https://subtitle_dealing"
	DefaultAppName = "subtitle_dealing"
)

// Config holds the configuration for the transcription client.
// Values come from internal/config; see its Config for the environment
// variables behind each field.
type Config struct {
	APIKey   string `json:"api_key"`
	APIURL   string `json:"api_url"`
	Model    string `json:"model"`
	Timeout  int    `json:"timeout"`
	SiteURL  string `json:"site_url"`
	AppName  string `json:"app_name"`
	Insecure bool   `json:"insecure"` // skip TLS certificate verification
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for the API request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}
