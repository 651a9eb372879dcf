package export

import (
	"bytes"
	"encoding/json"
	"io"
)

// WriteJSON writes the table as an array of objects whose keys keep column
// order. Empty cells become null.
func WriteJSON(w io.Writer, t Table) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for j, col := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if j >= len(row) || row[j] == "" {
				buf.WriteString("null")
				continue
			}
			val, err := json.Marshal(row[j])
			if err != nil {
				return err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	if len(t.Rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}
