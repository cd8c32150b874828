package output

import (
	"encoding/json"
	"io"

	"github.com/vulnverified/subsweep/internal/engine"
)

// WriteJSON writes the job result as indented JSON to w.
func WriteJSON(w io.Writer, result *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteEvent writes one event as a single JSON line.
func WriteEvent(w io.Writer, e engine.Event) error {
	return json.NewEncoder(w).Encode(e)
}
