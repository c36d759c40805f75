package types

import "time"

// HTTPConfig holds settings for requests to the conversion service.
type HTTPConfig struct {
	// Timeout is the default request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// UploadTimeout bounds uploads and downloads (default 120s).
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout" mapstructure:"upload_timeout" validate:"gt=0"`

	// HealthTimeout bounds the health check (default 5s).
	HealthTimeout time.Duration `json:"health_timeout" yaml:"health_timeout" mapstructure:"health_timeout" validate:"gt=0"`

	// MaxRetries is the number of retries for throttled or unavailable
	// responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// UserAgent is sent with every request (e.g. "pdfnmd/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LimitsConfig bounds what the validation gate accepts.
type LimitsConfig struct {
	MaxFiles       int     `json:"max_files" yaml:"max_files" mapstructure:"max_files" validate:"gt=0"`
	MaxFileSizeMB  float64 `json:"max_file_size_mb" yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"gt=0"`
	MaxTotalSizeMB float64 `json:"max_total_size_mb" yaml:"max_total_size_mb" mapstructure:"max_total_size_mb" validate:"gt=0,gtefield=MaxFileSizeMB"`
}

// PollingConfig controls task status polling.
type PollingConfig struct {
	// Interval is the pause between a poll's completion and the next poll
	// (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval" validate:"gt=0"`

	// MaxAttempts is the poll budget per task (default 150, about 5 minutes).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gt=0"`
}

// UploadConfig controls upload scheduling.
type UploadConfig struct {
	// Concurrent is the upload batch size (default 3).
	Concurrent int `json:"concurrent" yaml:"concurrent" mapstructure:"concurrent" validate:"gt=0"`
}

// HistoryConfig locates the local conversion history database.
type HistoryConfig struct {
	// Dir holds history.db (default ".pdfnmd").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir" validate:"required"`

	// Disabled turns history recording off.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`
}

// ClientConfig groups all settings consumed by the conversion client.
type ClientConfig struct {
	// APIURL is the service base URL including the /api prefix.
	APIURL string `json:"api_url" yaml:"api_url" mapstructure:"api_url" validate:"required,url"`

	// APIToken is sent as a bearer token when set.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`

	// Language is sent as Accept-Language.
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	Mode ConversionMode `json:"mode" yaml:"mode" mapstructure:"mode" validate:"oneof=pdf-to-md md-to-pdf"`

	// CopyRevertDelay is how long a copied result shows as copied (default 1.5s).
	CopyRevertDelay time.Duration `json:"copy_revert_delay" yaml:"copy_revert_delay" mapstructure:"copy_revert_delay" validate:"gt=0"`

	HTTP    HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	Limits  LimitsConfig  `json:"limits" yaml:"limits" mapstructure:"limits"`
	Polling PollingConfig `json:"polling" yaml:"polling" mapstructure:"polling"`
	Upload  UploadConfig  `json:"upload" yaml:"upload" mapstructure:"upload"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
}
