// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value. The service bearer token lives in "api-token".
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdfnmd/internal/logging"
)

// DefaultDir is where secrets are read from unless configured otherwise.
const DefaultDir = ".secrets"

// APITokenKey is the file holding the bearer token for the service.
const APITokenKey = "api-token"

// Load reads all files in dir and returns a map of file name to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, log *logging.Logger) (map[string]string, error) {
	if log == nil {
		log = logging.Nop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warnf("could not read secret %s: %v", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// APIToken returns the bearer token from dir, or "" if none is stored.
func APIToken(dir string, log *logging.Logger) (string, error) {
	s, err := Load(dir, log)
	if err != nil {
		return "", err
	}
	return s[APITokenKey], nil
}
