package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

const confidentialNotice = "CONFIDENTIAL - payroll bank transfer instructions. Do not distribute."

type BankTransferLine struct {
	EmployeeName      string
	BankAccountNumber string
	BankName          string
	NetPay            decimal.Decimal
}

// BankTransferDocument lists the payments of one run. Only lines with a
// positive net pay are kept.
type BankTransferDocument struct {
	CompanyName string
	Entity      string
	Period      time.Time
	Currency    string
	GeneratedAt time.Time
	Lines       []BankTransferLine
	GrandTotal  decimal.Decimal
}

// NewBankTransferDocument drops non-positive lines and totals the rest.
func NewBankTransferDocument(companyName, entity, currency string, period, generatedAt time.Time, lines []BankTransferLine) BankTransferDocument {
	doc := BankTransferDocument{
		CompanyName: companyName,
		Entity:      entity,
		Period:      period,
		Currency:    currency,
		GeneratedAt: generatedAt,
		Lines:       make([]BankTransferLine, 0, len(lines)),
		GrandTotal:  decimal.Zero,
	}
	for _, l := range lines {
		if !l.NetPay.IsPositive() {
			continue
		}
		doc.Lines = append(doc.Lines, l)
		doc.GrandTotal = doc.GrandTotal.Add(l.NetPay)
	}
	return doc
}

var columnWidths = []float64{60, 45, 45, 40}

// WriteBankTransferPDF renders doc as an A4 PDF. Every page repeats the
// table header and carries the confidentiality and pagination footer.
func WriteBankTransferPDF(w io.Writer, doc BankTransferDocument) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AliasNbPages("")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(fmt.Sprintf("Bank transfer %s %s", doc.Entity, doc.Period.Format("2006-01")), true)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(doc.CompanyName+" - Bank Transfer"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Entity: %s    Period: %s    Generated: %s",
			doc.Entity, doc.Period.Format("January 2006"), doc.GeneratedAt.Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		headers := []string{"Employee", "Bank Account", "Bank", "Net Pay (" + doc.Currency + ")"}
		for i, h := range headers {
			align := "L"
			if i == len(headers)-1 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], 7, tr(h), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	})

	pdf.SetFooterFunc(func() {
		left, _, _, _ := pdf.GetMargins()
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, confidentialNotice, "", 0, "L", false, 0, "")
		pdf.SetX(left)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)
	for _, l := range doc.Lines {
		pdf.CellFormat(columnWidths[0], 7, tr(l.EmployeeName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[1], 7, tr(l.BankAccountNumber), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[2], 7, tr(l.BankName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[3], 7, l.NetPay.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	labelWidth := columnWidths[0] + columnWidths[1] + columnWidths[2]
	pdf.CellFormat(labelWidth, 8, fmt.Sprintf("Grand Total (%d payments)", len(doc.Lines)), "1", 0, "R", false, 0, "")
	pdf.CellFormat(columnWidths[3], 8, doc.GrandTotal.StringFixed(2), "1", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render bank transfer pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write bank transfer pdf: %w", err)
	}
	return nil
}
