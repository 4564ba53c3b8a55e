package services

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Data"

// ExportCSV writes the original columns and rows of ds, in input order.
// Derived period fields are not part of the output.
func ExportCSV(ds *Dataset, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range ds.Records {
		if err := writer.Write(ds.Records[i].Raw); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportXLSX writes the same table as ExportCSV into a one-sheet workbook.
func ExportXLSX(ds *Dataset, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	if err := writeXLSXRow(sw, 1, ds.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range ds.Records {
		if err := writeXLSXRow(sw, i+2, ds.Records[i].Raw); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeXLSXRow(sw *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return sw.SetRow(cell, cells)
}
