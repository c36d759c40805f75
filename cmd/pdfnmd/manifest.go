// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdfnmd/pkg/types"
)

// Manifest records the outcome of one convert run.
type Manifest struct {
	Mode        types.ConversionMode `yaml:"mode"`
	GeneratedAt time.Time            `yaml:"generated_at"`
	Files       []types.TrackedFile  `yaml:"files"`
	Saved       []string             `yaml:"saved,omitempty"`
}

func writeManifest(path string, mode types.ConversionMode, files []types.TrackedFile, saved []string) error {
	m := Manifest{
		Mode:        mode,
		GeneratedAt: time.Now().UTC(),
		Files:       files,
		Saved:       saved,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
