// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

const exportLimit = 100000

// Export writes every entry matching q to w as "yaml" or "json".
func (s *Store) Export(ctx context.Context, w io.Writer, format string, q Query) error {
	q.Limit = exportLimit
	entries, err := s.List(ctx, q)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(entries)
	case "json":
		data, err = json.MarshalIndent(entries, "", "  ")
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}
