// Package receipt renders a printable stay receipt from an aggregated
// bill, a supplemented feature completing a dependency the teacher
// imported but never added to its module file. Grounded in the
// teacher's internal/utils/pdf_generator.go (GenerateDetailPDF/
// drawInfoSection/drawDetailTable), simplified to the core's standard
// fonts since the teacher's bundled Chinese TTF is not part of this
// module.
package receipt

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"hotelcore/internal/billing"
	"hotelcore/internal/corerr"
)

// StayInfo carries the guest-facing header fields a bill alone doesn't have.
type StayInfo struct {
	RoomID    string
	GuestName string
	CheckIn   time.Time
	CheckOut  time.Time
}

// Render writes a one-page PDF receipt for bill to w.
func Render(w io.Writer, info StayInfo, bill billing.Bill) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(180, 12, "Stay Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(90, 7, fmt.Sprintf("Room: %s", info.RoomID), "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 7, fmt.Sprintf("Guest: %s", info.GuestName), "", 1, "L", false, 0, "")
	pdf.CellFormat(90, 7, fmt.Sprintf("Check-in: %s", info.CheckIn.Format(time.RFC3339)), "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 7, fmt.Sprintf("Check-out: %s", info.CheckOut.Format(time.RFC3339)), "", 1, "L", false, 0, "")
	pdf.Ln(6)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, "Start", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "End", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Speed", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Fee", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, rec := range bill.Records {
		end := "-"
		if !rec.EndTime.IsZero() {
			end = rec.EndTime.Format("15:04:05")
		}
		pdf.CellFormat(40, 7, rec.StartTime.Format("15:04:05"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, end, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, string(rec.Speed), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", rec.Fee), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(140, 7, "Service fee total", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%.2f", bill.ServiceFeeTotal), "", 1, "R", false, 0, "")
	pdf.CellFormat(140, 7, "Accommodation fee", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%.2f", bill.AccommodationFee), "", 1, "R", false, 0, "")
	pdf.CellFormat(140, 7, "Meal fee total", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%.2f", bill.MealFeeTotal), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(140, 9, "Grand total", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 9, fmt.Sprintf("%.2f", bill.GrandTotal), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return corerr.Internal("receipt.Render", err)
	}
	return nil
}
