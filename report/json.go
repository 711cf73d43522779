package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON renders r as indented JSON.
func WriteJSON(w io.Writer, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
