// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate partitions candidate files into accepted and rejected
// sets before anything reaches the network.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// Result is the partition produced by Gate.Validate.
type Result struct {
	Accepted []types.SourceFile
	Rejected []types.Rejection
}

// Gate applies count, format, per-file size, and cumulative size rules for
// one conversion mode. It holds no state between calls.
type Gate struct {
	limits   types.LimitsConfig
	mode     types.ConversionMode
	mimes    map[string]bool
	suffixes []string
}

// NewGate returns a gate for mode. It fails if the mode has no accepted
// formats.
func NewGate(limits types.LimitsConfig, mode types.ConversionMode) (*Gate, error) {
	formats, ok := types.AcceptedFormats[mode]
	if !ok {
		return nil, fmt.Errorf("unknown conversion mode %q", mode)
	}
	g := &Gate{limits: limits, mode: mode, mimes: make(map[string]bool)}
	for _, f := range formats {
		if strings.HasPrefix(f, ".") {
			g.suffixes = append(g.suffixes, f)
		} else {
			g.mimes[f] = true
		}
	}
	return g, nil
}

// Mode returns the conversion mode the gate validates for.
func (g *Gate) Mode() types.ConversionMode { return g.mode }

// Validate checks candidates in order against the gate's rules, stopping
// at the first violation per file. existingCount is the number of files
// already tracked. The count and total-size rules use only what this call
// has accepted so far.
func (g *Gate) Validate(candidates []types.SourceFile, existingCount int) Result {
	var res Result
	var totalMB float64

	for _, f := range candidates {
		if existingCount+len(res.Accepted) >= g.limits.MaxFiles {
			res.Rejected = append(res.Rejected, g.reject(f, apierr.TooManyFiles))
			continue
		}
		if !g.acceptsFormat(f) {
			res.Rejected = append(res.Rejected, g.reject(f, apierr.InvalidFileType))
			continue
		}
		sizeMB := f.SizeMB()
		if sizeMB > g.limits.MaxFileSizeMB {
			res.Rejected = append(res.Rejected, g.reject(f, apierr.FileTooLarge))
			continue
		}
		if totalMB+sizeMB > g.limits.MaxTotalSizeMB {
			res.Rejected = append(res.Rejected, g.reject(f, apierr.TotalSizeExceeded))
			continue
		}
		totalMB += sizeMB
		res.Accepted = append(res.Accepted, f)
	}
	return res
}

func (g *Gate) acceptsFormat(f types.SourceFile) bool {
	if g.mimes[mediaType(f.ContentType)] {
		return true
	}
	name := strings.ToLower(f.Name)
	for _, s := range g.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func (g *Gate) reject(f types.SourceFile, k apierr.Kind) types.Rejection {
	var msg string
	switch k {
	case apierr.TooManyFiles:
		msg = fmt.Sprintf("at most %d files can be converted at once", g.limits.MaxFiles)
	case apierr.InvalidFileType:
		msg = fmt.Sprintf("%s is not a supported format for %s", f.Name, g.mode)
	case apierr.FileTooLarge:
		msg = fmt.Sprintf("%s exceeds the %g MB per-file limit", f.Name, g.limits.MaxFileSizeMB)
	case apierr.TotalSizeExceeded:
		msg = fmt.Sprintf("selected files exceed the %g MB total limit", g.limits.MaxTotalSizeMB)
	default:
		msg = apierr.DefaultMessage(k)
	}
	return types.Rejection{File: f, Reason: string(k), Message: msg}
}

// mediaType strips parameters such as "; charset=utf-8".
func mediaType(ct string) string {
	mt, _, _ := strings.Cut(ct, ";")
	return strings.TrimSpace(strings.ToLower(mt))
}

// FromPath describes the file at path as a SourceFile, sniffing its content
// type from the leading bytes.
func FromPath(path string) (types.SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return types.SourceFile{}, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("detecting content type of %s: %w", path, err)
	}

	return types.SourceFile{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mediaType(mt.String()),
		Path:        path,
	}, nil
}
