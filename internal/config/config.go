// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds a validated ClientConfig from viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfnmd/pkg/types"
)

// Defaults mirror the limits and timings the service is built around.
const (
	DefaultAPIURL          = "http://localhost:8000/api"
	DefaultLanguage        = "ko"
	DefaultTimeout         = 30 * time.Second
	DefaultUploadTimeout   = 120 * time.Second
	DefaultHealthTimeout   = 5 * time.Second
	DefaultMaxRetries      = 3
	DefaultMaxFiles        = 20
	DefaultMaxFileSizeMB   = 20
	DefaultMaxTotalSizeMB  = 100
	DefaultPollInterval    = 2 * time.Second
	DefaultPollAttempts    = 150
	DefaultConcurrent      = 3
	DefaultCopyRevertDelay = 1500 * time.Millisecond
	DefaultHistoryDir      = ".pdfnmd"
)

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper, userAgent string) {
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("api_token", "")
	v.SetDefault("language", DefaultLanguage)
	v.SetDefault("mode", string(types.ModePDFToMarkdown))
	v.SetDefault("copy_revert_delay", DefaultCopyRevertDelay)

	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.upload_timeout", DefaultUploadTimeout)
	v.SetDefault("http.health_timeout", DefaultHealthTimeout)
	v.SetDefault("http.max_retries", DefaultMaxRetries)
	v.SetDefault("http.user_agent", userAgent)

	v.SetDefault("limits.max_files", DefaultMaxFiles)
	v.SetDefault("limits.max_file_size_mb", DefaultMaxFileSizeMB)
	v.SetDefault("limits.max_total_size_mb", DefaultMaxTotalSizeMB)

	v.SetDefault("polling.interval", DefaultPollInterval)
	v.SetDefault("polling.max_attempts", DefaultPollAttempts)

	v.SetDefault("upload.concurrent", DefaultConcurrent)

	v.SetDefault("history.dir", DefaultHistoryDir)
	v.SetDefault("history.disabled", false)
}

// Load decodes v into a ClientConfig and validates it. Call SetDefaults
// first so unset keys have values.
func Load(v *viper.Viper) (types.ClientConfig, error) {
	var cfg types.ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its field constraints.
func Validate(cfg types.ClientConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = describe(fe)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "ClientConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return fmt.Sprintf("%s %q is not a valid URL", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
