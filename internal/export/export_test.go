package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leads-cli/internal/leadcsv"
	"github.com/sells-group/leads-cli/internal/model"
)

func sampleLeads() []model.LeadRecord {
	return []model.LeadRecord{
		{CompanyName: "Zeta", Qualified: model.QualifiedNo, Score: 1},
		{CompanyName: "beta", EmailFinal: "info@beta.io", Qualified: model.QualifiedMaybe, Score: 5},
		{CompanyName: "Acme", EmailFinal: "jane@acme.com", Qualified: model.QualifiedYes, Score: 8},
		{CompanyName: "Alpha", Phone: "+15551234567", Qualified: model.QualifiedMaybe, Score: 5},
		{CompanyName: "Gamma", EmailFinal: "bob@gamma.com", Qualified: model.QualifiedYes, Score: 9},
	}
}

func TestSort(t *testing.T) {
	recs := sampleLeads()
	Sort(recs)
	var names []string
	for _, r := range recs {
		names = append(names, r.CompanyName)
	}
	assert.Equal(t, []string{"Gamma", "Acme", "Alpha", "beta", "Zeta"}, names)
}

func TestSalesPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.xlsx")
	cols := leadcsv.LeadColumns(nil)

	summary, err := SalesPack(path, sampleLeads(), cols)
	require.NoError(t, err)
	assert.Equal(t, Summary{All: 5, Qualified: 4, NoEmail: 2}, summary)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, SheetAll, f.Sheets[0].Name)
	assert.Equal(t, SheetQualified, f.Sheets[1].Name)
	assert.Equal(t, SheetNoEmail, f.Sheets[2].Name)

	all := f.Sheet[SheetAll]
	require.Len(t, all.Rows, 6)
	assert.Equal(t, "company_name", all.Rows[0].Cells[0].String())
	assert.Equal(t, "Gamma", all.Rows[1].Cells[0].String())

	scoreIdx := -1
	for i, c := range cols {
		if c == "score" {
			scoreIdx = i
		}
	}
	require.GreaterOrEqual(t, scoreIdx, 0)
	assert.Equal(t, "9", all.Rows[1].Cells[scoreIdx].String())

	noEmail := f.Sheet[SheetNoEmail]
	require.Len(t, noEmail.Rows, 3)
	assert.Equal(t, "Alpha", noEmail.Rows[1].Cells[0].String())
	assert.Equal(t, "Zeta", noEmail.Rows[2].Cells[0].String())
}

func TestSalesPack_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.xlsx")
	summary, err := SalesPack(path, nil, leadcsv.CoreColumns)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Sheet[SheetQualified].Rows, 1)
}
