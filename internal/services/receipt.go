package services

import (
	"bytes"
	"fmt"
	"time"

	"skillup-lms/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptData - данные для PDF-квитанции.
type ReceiptData struct {
	Payment *models.Payment
	Course  *models.Course
	User    *models.User
}

// BuildReceiptPDF формирует PDF-квитанцию об оплате курса.
func BuildReceiptPDF(data ReceiptData) ([]byte, error) {
	if data.Payment == nil || data.Course == nil {
		return nil, fmt.Errorf("receipt requires payment and course")
	}
	p := data.Payment

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment receipt "+p.ID.String(), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "SkillUp - Payment Receipt")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	line("Receipt no.", p.ID.String())
	line("Date", p.CreatedAt.UTC().Format(time.RFC1123))
	if data.User != nil {
		line("Billed to", fmt.Sprintf("%s <%s>", data.User.Name, data.User.Email))
	}
	line("Course", data.Course.Title)
	line("Course price", formatMoney(data.Course.Price, p.Currency))
	if p.DiscountAmount > 0 {
		line("Discount", "-"+formatMoney(p.DiscountAmount, p.Currency))
	}
	line("Amount paid", formatMoney(p.Amount, p.Currency))
	line("Status", string(p.Status))
	line("Gateway order", p.GatewayOrderID)
	line("Gateway payment", p.GatewayPaymentID)

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This receipt was generated electronically and does not require a signature.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatMoney(amount float64, currency string) string {
	return fmt.Sprintf("%s %.2f", currency, amount)
}
