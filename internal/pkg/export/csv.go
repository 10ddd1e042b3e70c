package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type bankTransferRow struct {
	EmployeeName      string `csv:"employee_name"`
	BankAccountNumber string `csv:"bank_account_number"`
	BankName          string `csv:"bank_name"`
	NetPay            string `csv:"net_pay"`
}

// WriteBankTransferCSV writes one row per payment followed by a TOTAL row.
func WriteBankTransferCSV(w io.Writer, doc BankTransferDocument) error {
	rows := make([]bankTransferRow, 0, len(doc.Lines)+1)
	for _, l := range doc.Lines {
		rows = append(rows, bankTransferRow{
			EmployeeName:      l.EmployeeName,
			BankAccountNumber: l.BankAccountNumber,
			BankName:          l.BankName,
			NetPay:            l.NetPay.StringFixed(2),
		})
	}
	rows = append(rows, bankTransferRow{EmployeeName: "TOTAL", NetPay: doc.GrandTotal.StringFixed(2)})

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write bank transfer csv: %w", err)
	}
	return nil
}

// TaxRow is one employee/tax-rule pair of a tax report.
type TaxRow struct {
	EmployeeID   string
	EmployeeName string
	BaseSalary   decimal.Decimal
	TaxName      string
	Rate         *decimal.Decimal
	Amount       decimal.Decimal
}

type taxCSVRow struct {
	EmployeeID   string `csv:"employee_id"`
	EmployeeName string `csv:"employee_name"`
	BaseSalary   string `csv:"base_salary"`
	TaxName      string `csv:"tax"`
	Rate         string `csv:"rate_percent"`
	Amount       string `csv:"amount"`
}

func WriteTaxReportCSV(w io.Writer, rows []TaxRow) error {
	out := make([]taxCSVRow, 0, len(rows))
	for _, r := range rows {
		rate := ""
		if r.Rate != nil {
			rate = r.Rate.String()
		}
		out = append(out, taxCSVRow{
			EmployeeID:   r.EmployeeID,
			EmployeeName: r.EmployeeName,
			BaseSalary:   r.BaseSalary.StringFixed(2),
			TaxName:      r.TaxName,
			Rate:         rate,
			Amount:       r.Amount.StringFixed(2),
		})
	}

	if err := gocsv.Marshal(out, w); err != nil {
		return fmt.Errorf("failed to write tax report csv: %w", err)
	}
	return nil
}
