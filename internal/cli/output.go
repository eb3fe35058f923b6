package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormatter writes command results as indented JSON or plain text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Emit writes v as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Emit(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.Writer, "%s\n", data)
		return err
	}
	text(f.Writer)
	return nil
}
