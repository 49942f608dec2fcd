package main

import (
	"encoding/json"
	"io"
)

// outputJSON writes a value as formatted JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
