package leadcsv

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// Writer appends chunks of lead records to an output file. The file is
// opened once per Append and closed before it returns; the header is written
// only when the file is empty. Rows appended to a non-empty file follow that
// file's own header, so a file widened by a later pass stays rectangular.
type Writer struct {
	path    string
	columns []string
}

// NewWriter creates a Writer. A nil columns slice means CoreColumns.
func NewWriter(path string, columns []string) *Writer {
	if columns == nil {
		columns = CoreColumns
	}
	return &Writer{path: path, columns: columns}
}

// Path returns the output path.
func (w *Writer) Path() string { return w.path }

// Truncate empties the output file, creating it if needed.
func (w *Writer) Truncate() error {
	f, err := os.Create(w.path)
	if err != nil {
		return eris.Wrap(err, "leadcsv: truncate output")
	}
	return eris.Wrap(f.Close(), "leadcsv: close output")
}

// EnsureHeader writes the header to a missing or empty output file.
func (w *Writer) EnsureHeader() error {
	_, err := w.Append(nil)
	return err
}

// Append writes records, preceded by the header if the file is empty, and
// returns the number of rows written.
func (w *Writer) Append(records []model.LeadRecord) (int, error) {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, eris.Wrap(err, "leadcsv: open output")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return 0, eris.Wrap(err, "leadcsv: stat output")
	}

	empty := info.Size() == 0
	columns := w.columns
	if !empty {
		if columns, err = fileHeader(w.path); err != nil {
			f.Close() //nolint:errcheck
			return 0, err
		}
	}
	if err := writeRows(f, records, columns, empty); err != nil {
		f.Close() //nolint:errcheck
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, eris.Wrap(err, "leadcsv: close output")
	}
	return len(records), nil
}

// fileHeader reads the header row of an existing lead file.
func fileHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: open output header")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: read output header")
	}
	return trimHeader(header), nil
}
