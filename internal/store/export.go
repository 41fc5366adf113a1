package store

import (
	"context"
	"encoding/json"
	"fmt"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/vault"
	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatEnv  = "env"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Export renders a variable set for download in the requested format.
// All three formats list keys in sorted order, so exporting the same set
// twice produces identical bytes. An env export parses back losslessly
// through BulkReplace.
//
// Returns ErrUnknownFormat for a format other than env, json, or yaml.
func (s *Store) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	result := &ExportResult{Scope: opts.Scope, Format: opts.Format}
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionExport, "*", func() (map[string]any, error) {
		vars, err := s.backend.Load(opts.Scope)
		if err != nil {
			return nil, err
		}

		content, ext, err := formatVariables(opts.Format, vars)
		if err != nil {
			return nil, err
		}

		result.Content = content
		result.Filename = opts.Scope.Namespace + "-" + opts.Scope.Environment + ext
		result.Count = len(vars)

		return map[string]any{
			"format":   opts.Format,
			"count":    len(vars),
			"filename": result.Filename,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func formatVariables(format string, vars vault.Variables) (content []byte, ext string, err error) {
	switch format {
	case FormatEnv:
		return []byte(vault.FormatDotenv(vars)), ".env", nil
	case FormatJSON:
		data, err := json.MarshalIndent(vars, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode variables as JSON: %w", err)
		}
		return append(data, '\n'), ".json", nil
	case FormatYAML:
		data, err := yaml.Marshal(map[string]string(vars))
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode variables as YAML: %w", err)
		}
		return data, ".yaml", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", kerrors.ErrUnknownFormat, format)
	}
}
