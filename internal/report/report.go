// Package report renders influencer attribution exports as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"promoledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	AttributionsSheet = "Attributions"
	ContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var attributionHeaders = []string{
	"Attribution ID", "Link ID", "Product ID", "Status", "Order ID",
	"Order Amount", "Rate (bps)", "Commission", "Clicked At", "Converted At", "Paid At",
}

// WriteAttributions writes rows plus a totals line to w as an XLSX workbook.
// Amounts are minor units rendered with two decimals.
func WriteAttributions(w io.Writer, rows []models.Attribution) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AttributionsSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, header := range attributionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(AttributionsSheet, cell, header); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(AttributionsSheet, 1, 1, bold); err != nil {
		return err
	}

	var total int64
	for i, a := range rows {
		r := i + 2
		values := []interface{}{
			a.ID, a.LinkID, a.ProductID, string(a.Status), deref(a.OrderID),
			minor(a.OrderAmount), rate(a.RateBps), minor(a.CommissionAmount),
			a.ClickedAt.UTC().Format(time.RFC3339), stamp(a.ConvertedAt), stamp(a.PaidAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellValue(AttributionsSheet, cell, v); err != nil {
				return err
			}
		}
		total += a.Commission()
	}

	totalRow := len(rows) + 2
	if err := f.SetCellValue(AttributionsSheet, fmt.Sprintf("G%d", totalRow), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(AttributionsSheet, fmt.Sprintf("H%d", totalRow), minor(&total)); err != nil {
		return err
	}
	if err := f.SetRowStyle(AttributionsSheet, totalRow, totalRow, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(AttributionsSheet, "A", "C", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(AttributionsSheet, "I", "K", 22); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func minor(v *int64) interface{} {
	if v == nil {
		return ""
	}
	f, _ := decimal.New(*v, -2).Float64()
	return f
}

func rate(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
