// Package export builds the XLSX sales pack from a lead file.
package export

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leads-cli/internal/leadcsv"
	"github.com/sells-group/leads-cli/internal/model"
)

// Sheet names of the sales pack.
const (
	SheetAll       = "ALL"
	SheetQualified = "Qualified"
	SheetNoEmail   = "No Email"
)

// Summary counts the rows written to each sheet.
type Summary struct {
	All       int
	Qualified int
	NoEmail   int
}

// Sort orders leads for sales: yes before maybe before anything else, then
// higher score, then company name.
func Sort(recs []model.LeadRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if ra, rb := qualifiedRank(a.Qualified), qualifiedRank(b.Qualified); ra != rb {
			return ra < rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return strings.ToLower(a.CompanyName) < strings.ToLower(b.CompanyName)
	})
}

func qualifiedRank(q model.Qualified) int {
	switch model.Qualified(strings.ToLower(strings.TrimSpace(string(q)))) {
	case model.QualifiedYes:
		return 0
	case model.QualifiedMaybe:
		return 1
	}
	return 2
}

// IsQualified reports whether a lead belongs on the Qualified sheet.
func IsQualified(rec model.LeadRecord) bool {
	return qualifiedRank(rec.Qualified) < 2
}

// SalesPack writes recs to path as an XLSX workbook with ALL, Qualified and
// No Email sheets, each using the given column order.
func SalesPack(path string, recs []model.LeadRecord, columns []string) (Summary, error) {
	sorted := make([]model.LeadRecord, len(recs))
	copy(sorted, recs)
	Sort(sorted)

	var qualified, noEmail []model.LeadRecord
	for _, r := range sorted {
		if IsQualified(r) {
			qualified = append(qualified, r)
		}
		if strings.TrimSpace(r.EmailFinal) == "" {
			noEmail = append(noEmail, r)
		}
	}

	f := xlsx.NewFile()
	for _, s := range []struct {
		name string
		rows []model.LeadRecord
	}{
		{SheetAll, sorted},
		{SheetQualified, qualified},
		{SheetNoEmail, noEmail},
	} {
		if err := addSheet(f, s.name, s.rows, columns); err != nil {
			return Summary{}, err
		}
	}

	if err := f.Save(path); err != nil {
		return Summary{}, eris.Wrap(err, "export: save workbook")
	}
	return Summary{All: len(sorted), Qualified: len(qualified), NoEmail: len(noEmail)}, nil
}

func addSheet(f *xlsx.File, name string, recs []model.LeadRecord, columns []string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", name)
	}

	header := sheet.AddRow()
	for _, c := range columns {
		header.AddCell().SetString(c)
	}
	for i := range recs {
		row := sheet.AddRow()
		for j, v := range leadcsv.Row(&recs[i], columns) {
			cell := row.AddCell()
			if columns[j] == "score" {
				if n, err := strconv.Atoi(v); err == nil {
					cell.SetInt(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}
	return nil
}
