package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var outputFormat string

// writeReport renders a command summary as json or yaml.
func writeReport(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode report")
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode report")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format: %s (want json or yaml)", outputFormat)
	}
	return nil
}
