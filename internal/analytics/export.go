package analytics

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook written by ExportXLSX.
const (
	SheetBuildings     = "Buildings"
	SheetDistrictPrice = "DistrictPrice"
	SheetDistrictDeals = "DistrictVolume"
	SheetFloors        = "Floors"
	SheetCorrelations  = "Correlations"
)

// sheet is one worksheet: a header row and data rows.
type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

// ExportXLSX writes every table that can be computed from the loaded datasets
// into one workbook, one sheet per table.
func (ds *Dataset) ExportXLSX() ([]byte, error) {
	sheets := ds.sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: nothing to export", ErrDatasetUnavailable)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	header := make([]interface{}, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set %s header style: %w", s.name, err)
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.name, i+2, err)
		}
	}
	return nil
}

func (ds *Dataset) sheets() []sheet {
	var out []sheet

	if buildings, err := ds.TopBuildings(DefaultTopN); err == nil {
		s := sheet{name: SheetBuildings, header: []string{"building", "deals"}}
		for _, b := range buildings {
			s.rows = append(s.rows, []interface{}{b.Key, b.Count})
		}
		out = append(out, s)
	}

	if byPrice, err := ds.TopDistrictsByAveragePrice(DefaultTopN); err == nil {
		s := sheet{name: SheetDistrictPrice, header: []string{"region", "average_price_won", "deals"}}
		for _, r := range byPrice {
			s.rows = append(s.rows, []interface{}{r.Region, r.AveragePrice, r.Volume})
		}
		out = append(out, s)
	}

	if byVolume, err := ds.TopDistrictsByVolume(DefaultTopN); err == nil {
		s := sheet{name: SheetDistrictDeals, header: []string{"region", "deals", "average_price_won"}}
		for _, r := range byVolume {
			s.rows = append(s.rows, []interface{}{r.Region, r.Volume, r.AveragePrice})
		}
		out = append(out, s)
	}

	if floors, err := ds.FloorAveragePrice(); err == nil {
		s := sheet{name: SheetFloors, header: []string{"floor", "average_price_won"}}
		for _, fl := range floors {
			s.rows = append(s.rows, []interface{}{fl.Floor, fl.AveragePrice})
		}
		out = append(out, s)
	}

	if corr, err := ds.Correlations(); err == nil {
		s := sheet{name: SheetCorrelations, header: []string{"variable", "n", "r", "slope", "intercept"}}
		for _, c := range corr {
			s.rows = append(s.rows, []interface{}{c.Variable, c.N, c.R, c.Slope, c.Intercept})
		}
		out = append(out, s)
	}

	return out
}
