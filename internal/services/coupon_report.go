package services

import (
	"fmt"

	"skillup-lms/internal/models"

	"github.com/xuri/excelize/v2"
)

const usageSheet = "Usages"

// BuildCouponUsageReport выгружает историю использования купона в XLSX.
func BuildCouponUsageReport(coupon *models.Coupon, usages []*models.CouponUsage) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", usageSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := []interface{}{"Usage ID", "Coupon code", "User ID", "Course ID", "Discount amount", "Used at"}
	if err := f.SetSheetRow(usageSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var total float64
	for i, u := range usages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			u.ID.String(), coupon.Code, u.UserID.String(), u.CourseID.String(), u.DiscountAmount, u.UsedAt.UTC(),
		}
		if err := f.SetSheetRow(usageSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write usage row: %w", err)
		}
		total += u.DiscountAmount
	}

	totalRow := len(usages) + 2
	if err := f.SetCellValue(usageSheet, fmt.Sprintf("D%d", totalRow), "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(usageSheet, fmt.Sprintf("E%d", totalRow), total); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render usage report: %w", err)
	}
	return buf.Bytes(), nil
}
