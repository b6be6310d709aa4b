// Package cession renders bordereaux into spreadsheet reports for reinsurers
package cession

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
)

// ExcelExporter writes bordereau workbooks into the export directory
type ExcelExporter struct {
	companyName string
	exportDir   string
	logger      *zap.Logger
}

// NewExcelExporter creates a new bordereau exporter
func NewExcelExporter(companyName, exportDir string, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		companyName: companyName,
		exportDir:   exportDir,
		logger:      logger,
	}
}

// Export writes the bordereau and its claim snapshots to an xlsx file and
// returns the file path
func (e *ExcelExporter) Export(b *entity.Bordereau, contract *entity.ReinsuranceContract, lines []*entity.BordereauLine) (string, error) {
	e.logger.Info("Exporting bordereau",
		zap.String("number", b.Number),
		zap.Int("lines", len(lines)))

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	// Header block
	e.setCell(f, sheet, "A1", "Reinsurance Bordereau")
	e.setCell(f, sheet, "A2", "Ceding company")
	e.setCell(f, sheet, "B2", e.companyName)
	e.setCell(f, sheet, "A3", "Bordereau")
	e.setCell(f, sheet, "B3", b.Number)
	e.setCell(f, sheet, "A4", "Contract")
	e.setCell(f, sheet, "B4", contract.Name)
	e.setCell(f, sheet, "A5", "Reinsurer")
	e.setCell(f, sheet, "B5", contract.ReinsurerRef)
	e.setCell(f, sheet, "A6", "Period")
	e.setCell(f, sheet, "B6", fmt.Sprintf("%s to %s",
		b.PeriodStart.Format("2006-01-02"), b.PeriodEnd.Format("2006-01-02")))

	// Claim table
	headers := []string{"Claim", "Loss date", "Member", "Provider", "Service", "Claimed", "Approved", "Ceded"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 8)
		e.setCell(f, sheet, cell, header)
	}

	row := 9
	for _, line := range lines {
		values := []interface{}{
			line.ClaimID,
			line.LossDate.Format("2006-01-02"),
			line.MemberID,
			line.ProviderID,
			line.ServiceID,
			line.ClaimedAmount.StringFixed(2),
			line.ApprovedAmount.StringFixed(2),
			line.ReinsurerShare.StringFixed(2),
		}
		for i, value := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			e.setCell(f, sheet, cell, value)
		}
		row++
	}

	// Totals
	e.setCell(f, sheet, fmt.Sprintf("A%d", row+1), "Total claims")
	e.setCell(f, sheet, fmt.Sprintf("B%d", row+1), b.TotalClaims)
	e.setCell(f, sheet, fmt.Sprintf("A%d", row+2), "Total ceded")
	e.setCell(f, sheet, fmt.Sprintf("B%d", row+2), b.TotalReinsurerShare.StringFixed(2))

	path := filepath.Join(e.exportDir, fmt.Sprintf("%s.xlsx", b.Number))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save bordereau workbook: %w", err)
	}

	e.logger.Info("Bordereau exported", zap.String("path", path))
	return path, nil
}

// setCell sets a cell value, logging failures without aborting the export
func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
