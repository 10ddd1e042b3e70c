package payroll

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/export"
	"github.com/shopspring/decimal"
)

// ========== REPORTS ==========

func (s *PayrollServiceImpl) runWithPayslips(ctx context.Context, runID string) (payroll.Run, []payroll.Payslip, error) {
	run, err := s.RunRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.Run{}, nil, err
	}
	slips, err := s.PayslipRepo.ListByRun(ctx, runID)
	if err != nil {
		return payroll.Run{}, nil, err
	}
	return run, slips, nil
}

func (s *PayrollServiceImpl) SummaryReport(ctx context.Context, runID string) (payroll.SummaryReportResponse, error) {
	run, slips, err := s.runWithPayslips(ctx, runID)
	if err != nil {
		return payroll.SummaryReportResponse{}, err
	}

	report := payroll.SummaryReportResponse{
		RunID:           run.ID,
		Period:          run.Period.Format("2006-01-02"),
		Entity:          run.Entity,
		Status:          run.Status,
		EmployeeCount:   len(slips),
		ExceptionCount:  run.ExceptionCount,
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
	}

	b := &report.Breakdown
	for _, p := range slips {
		report.TotalGross = report.TotalGross.Add(p.TotalGrossSalary)
		report.TotalDeductions = report.TotalDeductions.Add(p.TotalDeductions)
		report.TotalNet = report.TotalNet.Add(p.NetPay)

		b.BaseSalary = b.BaseSalary.Add(p.Earnings.BaseSalary)
		b.GrossSalary = b.GrossSalary.Add(p.Earnings.GrossSalary)
		b.Allowances = b.Allowances.Add(payroll.SumContributions(p.Earnings.Allowances))
		b.Bonuses = b.Bonuses.Add(payroll.SumContributions(p.Earnings.Bonuses))
		b.Benefits = b.Benefits.Add(payroll.SumContributions(p.Earnings.Benefits))
		b.Refunds = b.Refunds.Add(payroll.SumContributions(p.Earnings.Refunds))
		b.Taxes = b.Taxes.Add(payroll.SumContributions(p.Deductions.Taxes))
		b.Insurance = b.Insurance.Add(payroll.SumContributions(p.Deductions.Insurances))
		b.Penalties = b.Penalties.Add(p.Deductions.Penalties.AmountDeducted)
		b.UnpaidLeaves = b.UnpaidLeaves.Add(p.Deductions.UnpaidLeaves.Deduction)
	}

	return report, nil
}

func (s *PayrollServiceImpl) TaxReport(ctx context.Context, runID string) (payroll.TaxReportResponse, error) {
	run, slips, err := s.runWithPayslips(ctx, runID)
	if err != nil {
		return payroll.TaxReportResponse{}, err
	}

	report := payroll.TaxReportResponse{
		RunID:    run.ID,
		Period:   run.Period.Format("2006-01-02"),
		Entity:   run.Entity,
		Rows:     make([]payroll.TaxReportRow, 0, len(slips)),
		TotalTax: decimal.Zero,
	}

	for _, p := range slips {
		row := payroll.TaxReportRow{
			EmployeeID:   p.EmployeeID,
			EmployeeName: p.EmployeeName,
			BaseSalary:   p.Earnings.BaseSalary,
			Taxes:        make([]payroll.TaxLine, 0, len(p.Deductions.Taxes)),
			TotalTax:     payroll.SumContributions(p.Deductions.Taxes),
		}
		for _, t := range p.Deductions.Taxes {
			row.Taxes = append(row.Taxes, payroll.TaxLine{Name: t.Label, Rate: t.Rate, Amount: t.Amount})
		}
		report.Rows = append(report.Rows, row)
		report.TotalTax = report.TotalTax.Add(row.TotalTax)
	}

	return report, nil
}

// ========== EXPORT ==========

func (s *PayrollServiceImpl) BankTransfer(ctx context.Context, runID string) (export.BankTransferDocument, error) {
	run, slips, err := s.runWithPayslips(ctx, runID)
	if err != nil {
		return export.BankTransferDocument{}, err
	}

	lines := make([]export.BankTransferLine, 0, len(slips))
	for _, p := range slips {
		lines = append(lines, export.BankTransferLine{
			EmployeeName:      p.EmployeeName,
			BankAccountNumber: p.BankAccountNumber,
			BankName:          p.BankName,
			NetPay:            p.NetPay,
		})
	}

	return export.NewBankTransferDocument(s.opts.CompanyName, run.Entity, s.opts.Currency, run.Period, s.now().UTC(), lines), nil
}

// ArchiveBankTransfer renders the bank transfer PDF and keeps a copy in file
// storage.
func (s *PayrollServiceImpl) ArchiveBankTransfer(ctx context.Context, runID string) (payroll.ArchiveResponse, error) {
	doc, err := s.BankTransfer(ctx, runID)
	if err != nil {
		return payroll.ArchiveResponse{}, err
	}

	var buf bytes.Buffer
	if err := export.WriteBankTransferPDF(&buf, doc); err != nil {
		return payroll.ArchiveResponse{}, err
	}

	path := fmt.Sprintf("bank-transfers/%s/%s-%s.pdf", doc.Period.Format("2006-01"), slug(doc.Entity), runID)
	key, err := s.Storage.Upload(ctx, &buf, path, "application/pdf")
	if err != nil {
		return payroll.ArchiveResponse{}, fmt.Errorf("failed to archive bank transfer: %w", err)
	}
	url, err := s.Storage.GetURL(ctx, key)
	if err != nil {
		return payroll.ArchiveResponse{}, err
	}

	s.Logger.Info("Bank transfer archived", "run_id", runID, "path", key)

	return payroll.ArchiveResponse{Path: key, URL: url}, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
