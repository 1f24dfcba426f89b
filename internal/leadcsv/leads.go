package leadcsv

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// ReadLeads loads a lead file. Columns that do not map onto a LeadRecord
// field are kept in each record's Extra and returned, in file order, as
// extras.
func ReadLeads(path string) (records []model.LeadRecord, extras []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "leadcsv: open leads")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.LazyQuotes = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "leadcsv: read leads header")
	}
	header = trimHeader(header)
	if err := requireColumns(header, "company_name"); err != nil {
		return nil, nil, eris.Wrapf(err, "leadcsv: %s", path)
	}
	r.FieldsPerRecord = -1

	var extraIdx []int
	for i, h := range header {
		if !IsKnownColumn(h) {
			extraIdx = append(extraIdx, i)
			extras = append(extras, h)
		}
	}

	dec, err := csvutil.NewDecoder(&fixedWidthReader{r: r, width: len(header)}, header...)
	if err != nil {
		return nil, nil, eris.Wrap(err, "leadcsv: leads decoder")
	}
	for {
		var rec model.LeadRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, eris.Wrap(err, "leadcsv: decode lead")
		}
		if len(extraIdx) > 0 {
			raw := dec.Record()
			rec.Extra = make([]model.ExtraField, len(extraIdx))
			// raw is the padded record, so every header index is valid.
			for j, i := range extraIdx {
				rec.Extra[j] = model.ExtraField{Name: header[i], Value: raw[i]}
			}
		}
		records = append(records, rec)
	}
	return records, extras, nil
}

// WriteLeads replaces path with records rendered in the given column order.
// The file is written to a temporary sibling and renamed into place.
func WriteLeads(path string, records []model.LeadRecord, columns []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "leadcsv: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := writeRows(tmp, records, columns, true); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "leadcsv: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "leadcsv: replace leads file")
	}
	return nil
}

// ReadKeys returns every (company_name, url) pair present in an existing
// output file. A missing or empty file yields an empty set.
func ReadKeys(path string) (map[model.SeedKey]struct{}, error) {
	keys := make(map[model.SeedKey]struct{})
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: open output for resume")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return keys, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: read output header")
	}
	header = trimHeader(header)
	if err := requireColumns(header, "company_name", "url"); err != nil {
		return nil, eris.Wrapf(err, "leadcsv: %s", path)
	}
	nameIdx, urlIdx := indexOf(header, "company_name"), indexOf(header, "url")

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "leadcsv: read output row")
		}
		keys[model.SeedKey{
			CompanyName: strings.TrimSpace(cellAt(row, nameIdx)),
			URL:         strings.TrimSpace(cellAt(row, urlIdx)),
		}] = struct{}{}
	}
	return keys, nil
}

func writeRows(w io.Writer, records []model.LeadRecord, columns []string, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(columns); err != nil {
			return eris.Wrap(err, "leadcsv: write header")
		}
	}
	for i := range records {
		if err := cw.Write(Row(&records[i], columns)); err != nil {
			return eris.Wrap(err, "leadcsv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "leadcsv: flush")
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// fixedWidthReader pads short records with empty fields and drops surplus
// trailing fields, so rows written before a file gained columns still load.
type fixedWidthReader struct {
	r     *csv.Reader
	width int
}

func (f *fixedWidthReader) Read() ([]string, error) {
	rec, err := f.r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) == f.width {
		return rec, nil
	}
	out := make([]string, f.width)
	copy(out, rec)
	return out, nil
}
