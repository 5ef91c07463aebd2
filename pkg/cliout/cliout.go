// Package cliout formats command results as YAML or JSON, optionally
// filtered through a jq expression before printing.
package cliout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// Format selects the serialization of a result.
type Format string

const (
	// FormatYAML is the default terminal format.
	FormatYAML Format = "yaml"
	// FormatJSON emits indented JSON.
	FormatJSON Format = "json"
)

// Options configures result output.
type Options struct {
	// Format is yaml (default) or json.
	Format Format

	// File is the output path; empty writes to stdout.
	File string

	// Writer overrides File when set.
	Writer io.Writer

	// JQ filters the result through a jq expression before
	// formatting. Each expression output becomes one document.
	JQ string
}

// Write serializes the result to the configured destination.
func Write(result any, opts Options) error {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	results, err := applyJQ(result, opts.JQ)
	if err != nil {
		return err
	}

	for _, r := range results {
		switch opts.Format {
		case FormatJSON:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(r); err != nil {
				return err
			}
		case FormatYAML, "":
			data, err := yaml.Marshal(r)
			if err != nil {
				return fmt.Errorf("format output: %w", err)
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported output format: %s", opts.Format)
		}
	}
	return nil
}

// applyJQ runs the expression over the result. The value is passed
// through JSON so the query sees plain maps and slices.
func applyJQ(result any, expr string) ([]any, error) {
	if expr == "" {
		return []any{result}, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode for jq: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode for jq: %w", err)
	}

	var out []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq: %w", err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("jq expression %q returned no result", expr)
	}
	return out, nil
}
