package leadcsv

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
)

const bom = "\ufeff"

// ReadSeeds loads the seed list from a CSV or XLSX file. The file must have
// company_name and url columns; other columns are ignored. Rows without a
// url are skipped.
func ReadSeeds(path string) ([]model.Seed, error) {
	var (
		seeds []model.Seed
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		seeds, err = readSeedsXLSX(path)
	} else {
		seeds, err = readSeedsCSV(path)
	}
	if err != nil {
		return nil, err
	}

	out := seeds[:0]
	for _, s := range seeds {
		s.CompanyName = strings.TrimSpace(s.CompanyName)
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			zap.L().Debug("leadcsv: skipping seed without url", zap.String("company", s.CompanyName))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func readSeedsCSV(path string) ([]model.Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: open seeds")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.LazyQuotes = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, eris.Errorf("leadcsv: %s is empty", path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: read seeds header")
	}
	header = normalizeHeader(header)
	if err := requireColumns(header, "company_name", "url"); err != nil {
		return nil, eris.Wrapf(err, "leadcsv: %s", path)
	}
	r.FieldsPerRecord = len(header)

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: seeds decoder")
	}

	var seeds []model.Seed
	for {
		var s model.Seed
		if err := dec.Decode(&s); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "leadcsv: decode seed")
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}

// readSeedsXLSX reads the first sheet; row 0 is the header.
func readSeedsXLSX(path string) ([]model.Seed, error) {
	rows, err := readSheet(path, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("leadcsv: %s is empty", path)
	}
	header := normalizeHeader(rows[0])
	if err := requireColumns(header, "company_name", "url"); err != nil {
		return nil, eris.Wrapf(err, "leadcsv: %s", path)
	}
	nameIdx, urlIdx := indexOf(header, "company_name"), indexOf(header, "url")

	seeds := make([]model.Seed, 0, len(rows)-1)
	for _, row := range rows[1:] {
		seeds = append(seeds, model.Seed{
			CompanyName: cellAt(row, nameIdx),
			URL:         cellAt(row, urlIdx),
		})
	}
	return seeds, nil
}

func readSheet(path string, index int) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: open xlsx")
	}
	if index >= len(f.Sheets) {
		return nil, eris.Errorf("leadcsv: sheet index %d out of range (file has %d sheets)", index, len(f.Sheets))
	}

	var rows [][]string
	for _, row := range f.Sheets[index].Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func requireColumns(header []string, names ...string) error {
	var missing []string
	for _, n := range names {
		if indexOf(header, n) < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
