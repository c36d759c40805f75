// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

const mb = 1024 * 1024

func pdf(name string, sizeMB float64) types.SourceFile {
	return types.SourceFile{Name: name, Size: int64(sizeMB * mb), ContentType: "application/pdf"}
}

func defaultLimits() types.LimitsConfig {
	return types.LimitsConfig{MaxFiles: 20, MaxFileSizeMB: 20, MaxTotalSizeMB: 100}
}

func newGate(t *testing.T, limits types.LimitsConfig, mode types.ConversionMode) *Gate {
	t.Helper()
	g, err := NewGate(limits, mode)
	require.NoError(t, err)
	return g
}

func reasons(res Result) []string {
	out := make([]string, len(res.Rejected))
	for i, r := range res.Rejected {
		out[i] = r.Reason
	}
	return out
}

func TestValidate_CountOverflowRejectsTail(t *testing.T) {
	limits := defaultLimits()
	limits.MaxFiles = 5
	g := newGate(t, limits, types.ModePDFToMarkdown)

	candidates := []types.SourceFile{pdf("a.pdf", 1), pdf("b.pdf", 1), pdf("c.pdf", 1), pdf("d.pdf", 1)}
	res := g.Validate(candidates, 3)

	require.Len(t, res.Accepted, 2)
	assert.Equal(t, "a.pdf", res.Accepted[0].Name)
	assert.Equal(t, "b.pdf", res.Accepted[1].Name)
	assert.Equal(t, []string{string(apierr.TooManyFiles), string(apierr.TooManyFiles)}, reasons(res))
	assert.Equal(t, "c.pdf", res.Rejected[0].File.Name)
}

func TestValidate_CountUsesRunningAcceptedCount(t *testing.T) {
	limits := defaultLimits()
	limits.MaxFiles = 2
	g := newGate(t, limits, types.ModePDFToMarkdown)

	// The rejected PNG does not consume a slot.
	candidates := []types.SourceFile{
		{Name: "x.png", Size: 10, ContentType: "image/png"},
		pdf("a.pdf", 1),
		pdf("b.pdf", 1),
		pdf("c.pdf", 1),
	}
	res := g.Validate(candidates, 0)

	require.Len(t, res.Accepted, 2)
	assert.Equal(t, []string{string(apierr.InvalidFileType), string(apierr.TooManyFiles)}, reasons(res))
}

func TestValidate_AlreadyFull(t *testing.T) {
	g := newGate(t, defaultLimits(), types.ModePDFToMarkdown)
	res := g.Validate([]types.SourceFile{pdf("a.pdf", 1)}, 20)
	assert.Empty(t, res.Accepted)
	assert.Equal(t, []string{string(apierr.TooManyFiles)}, reasons(res))
}

func TestValidate_CumulativeSize(t *testing.T) {
	limits := types.LimitsConfig{MaxFiles: 20, MaxFileSizeMB: 40, MaxTotalSizeMB: 100}
	g := newGate(t, limits, types.ModePDFToMarkdown)

	candidates := []types.SourceFile{pdf("1.pdf", 30), pdf("2.pdf", 30), pdf("3.pdf", 30), pdf("4.pdf", 30)}
	res := g.Validate(candidates, 0)

	assert.Len(t, res.Accepted, 3)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "4.pdf", res.Rejected[0].File.Name)
	assert.Equal(t, string(apierr.TotalSizeExceeded), res.Rejected[0].Reason)
}

func TestValidate_SmallFileFitsAfterOversizedOne(t *testing.T) {
	limits := types.LimitsConfig{MaxFiles: 20, MaxFileSizeMB: 40, MaxTotalSizeMB: 100}
	g := newGate(t, limits, types.ModePDFToMarkdown)

	candidates := []types.SourceFile{pdf("1.pdf", 35), pdf("2.pdf", 35), pdf("3.pdf", 35), pdf("4.pdf", 10)}
	res := g.Validate(candidates, 0)

	require.Len(t, res.Accepted, 3)
	assert.Equal(t, "4.pdf", res.Accepted[2].Name)
	assert.Equal(t, []string{string(apierr.TotalSizeExceeded)}, reasons(res))
}

func TestValidate_RuleOrder(t *testing.T) {
	g := newGate(t, defaultLimits(), types.ModePDFToMarkdown)

	tests := []struct {
		name string
		file types.SourceFile
		want string
	}{
		{"wrong type wins over size", types.SourceFile{Name: "big.png", Size: 50 * mb, ContentType: "image/png"}, string(apierr.InvalidFileType)},
		{"per-file size", pdf("big.pdf", 21), string(apierr.FileTooLarge)},
		{"exactly at cap", pdf("edge.pdf", 20), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Validate([]types.SourceFile{tt.file}, 0)
			if tt.want == "" {
				assert.Len(t, res.Accepted, 1)
				assert.Empty(t, res.Rejected)
				return
			}
			assert.Equal(t, []string{tt.want}, reasons(res))
			assert.NotEmpty(t, res.Rejected[0].Message)
		})
	}
}

func TestValidate_FormatMatching(t *testing.T) {
	tests := []struct {
		name string
		mode types.ConversionMode
		file types.SourceFile
		ok   bool
	}{
		{"pdf by mime", types.ModePDFToMarkdown, types.SourceFile{Name: "doc", ContentType: "application/pdf"}, true},
		{"pdf by extension", types.ModePDFToMarkdown, types.SourceFile{Name: "DOC.PDF", ContentType: "application/octet-stream"}, true},
		{"markdown rejected for pdf mode", types.ModePDFToMarkdown, types.SourceFile{Name: "a.md", ContentType: "text/markdown"}, false},
		{"markdown by mime with charset", types.ModeMarkdownToPDF, types.SourceFile{Name: "notes", ContentType: "text/plain; charset=utf-8"}, true},
		{"markdown by extension", types.ModeMarkdownToPDF, types.SourceFile{Name: "notes.md"}, true},
		{"pdf rejected for md mode", types.ModeMarkdownToPDF, types.SourceFile{Name: "a.pdf", ContentType: "application/pdf"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGate(t, defaultLimits(), tt.mode)
			res := g.Validate([]types.SourceFile{tt.file}, 0)
			assert.Equal(t, tt.ok, len(res.Accepted) == 1)
		})
	}
}

func TestNewGate_UnknownMode(t *testing.T) {
	_, err := NewGate(defaultLimits(), "docx-to-md")
	assert.Error(t, err)
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%fake\n"), 0o644))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, int64(15), f.Size)

	_, err = FromPath(dir)
	assert.Error(t, err)

	_, err = FromPath(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}
