package payroll

import (
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payrollconfig"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// payslipNamespace seeds deterministic payslip ids, one per (run, employee).
	payslipNamespace = uuid.MustParse("8f6f3f3e-1c1a-4b7e-9a55-2f4b2c7d9e10")
)

// PayslipID returns the id every calculation of runID assigns to employeeID.
func PayslipID(runID, employeeID string) string {
	return uuid.NewSHA1(payslipNamespace, []byte(runID+":"+employeeID)).String()
}

// ========== PRORATION ==========

type Proration struct {
	PayableDays  int
	DaysInPeriod int
	Factor       decimal.Decimal
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// inclusiveDays counts calendar days in [start, end], or 0 when end < start.
func inclusiveDays(start, end time.Time) int {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Prorate returns the share of [periodStart, periodEnd] the employee is payable,
// from their hire date and optional contract end date.
func Prorate(hireDate time.Time, contractEnd *time.Time, periodStart, periodEnd time.Time) Proration {
	periodStart, periodEnd = dateOnly(periodStart), dateOnly(periodEnd)
	daysInPeriod := inclusiveDays(periodStart, periodEnd)

	windowStart := periodStart
	if hire := dateOnly(hireDate); hire.After(windowStart) {
		windowStart = hire
	}
	windowEnd := periodEnd
	if contractEnd != nil {
		if end := dateOnly(*contractEnd); end.Before(windowEnd) {
			windowEnd = end
		}
	}

	payable := inclusiveDays(windowStart, windowEnd)
	p := Proration{PayableDays: payable, DaysInPeriod: daysInPeriod}
	switch {
	case daysInPeriod == 0 || payable == 0:
		p.Factor = decimal.Zero
	case payable >= daysInPeriod:
		p.Factor = decimal.NewFromInt(1)
	default:
		p.Factor = decimal.NewFromInt(int64(payable)).Div(decimal.NewFromInt(int64(daysInPeriod)))
	}
	return p
}

// prorated scales amount by payable/daysInPeriod without going through the
// rounded factor.
func (p Proration) prorated(amount decimal.Decimal) decimal.Decimal {
	if p.DaysInPeriod == 0 {
		return decimal.Zero
	}
	if p.PayableDays >= p.DaysInPeriod {
		return amount
	}
	return amount.Mul(decimal.NewFromInt(int64(p.PayableDays))).Div(decimal.NewFromInt(int64(p.DaysInPeriod)))
}

// ContractEndedBefore reports whether a contract ended before the period
// started. Such employees take no part in the run at all.
func ContractEndedBefore(contractEnd *time.Time, periodStart time.Time) bool {
	return contractEnd != nil && dateOnly(*contractEnd).Before(dateOnly(periodStart))
}

// ========== CALCULATOR ==========

// CalculationInput is everything one employee's payslip is computed from.
type CalculationInput struct {
	RunID               string
	Employee            employee.Employee
	PayGrade            employee.PayGrade
	PeriodStart         time.Time
	PeriodEnd           time.Time
	Snapshot            payrollconfig.Snapshot
	SigningBonuses      []compensation.SigningBonus
	TerminationBenefits []compensation.TerminationBenefit
	Refunds             []compensation.Refund
	Penalties           []compensation.Penalty
	Leaves              []leave.LeaveRequest
}

// Calculator turns a CalculationInput into a payslip. It holds no state and
// is safe for concurrent use.
type Calculator struct {
	logger *slog.Logger
}

func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// value reads a nullable amount. Missing amounts count as zero.
func (c *Calculator) value(d decimal.NullDecimal, in *CalculationInput, field, sourceID string) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	c.logger.Warn("Missing amount treated as zero",
		"run_id", in.RunID,
		"employee_id", in.Employee.ID,
		"field", field,
		"source_id", sourceID,
	)
	return decimal.Zero
}

func ratePtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func (c *Calculator) Compute(in CalculationInput) payroll.Payslip {
	_, _, daysInPeriod := payroll.PeriodBounds(in.PeriodStart)
	proration := Prorate(in.Employee.HireDate, in.Employee.ContractEndDate, in.PeriodStart, in.PeriodEnd)

	slip := payroll.Payslip{
		ID:                PayslipID(in.RunID, in.Employee.ID),
		RunID:             in.RunID,
		EmployeeID:        in.Employee.ID,
		EmployeeName:      in.Employee.FullName,
		Department:        in.Employee.Department,
		BankName:          in.Employee.BankName,
		BankAccountNumber: in.Employee.BankAccountNumber,
		ProrationFactor:   proration.Factor.Round(6),
		PaymentStatus:     payroll.PaymentStatusPending,
	}

	slip.Earnings = c.earnings(&in, proration)
	totalGross := slip.Earnings.Total()
	slip.Deductions = c.deductions(&in, slip.Earnings.BaseSalary, totalGross, daysInPeriod)
	slip.Recompute()

	return slip
}

// ========== EARNINGS ==========

func (c *Calculator) earnings(in *CalculationInput, proration Proration) payroll.EarningsDetails {
	base := c.value(in.PayGrade.BaseSalary, in, "pay_grade.base_salary", in.PayGrade.ID)
	gross := base
	if in.PayGrade.GrossSalary.Valid {
		gross = in.PayGrade.GrossSalary.Decimal
	}

	e := payroll.EarningsDetails{
		BaseSalary:  proration.prorated(base).Round(2),
		GrossSalary: proration.prorated(gross).Round(2),
		Allowances:  []payroll.Contribution{},
		Bonuses:     []payroll.Contribution{},
		Benefits:    []payroll.Contribution{},
		Refunds:     []payroll.Contribution{},
	}

	for _, a := range in.Snapshot.Allowances {
		e.Allowances = append(e.Allowances, payroll.Contribution{
			Kind:     payroll.KindAllowance,
			SourceID: a.ID,
			Label:    a.Name,
			Amount:   c.value(a.Amount, in, "allowance.amount", a.ID).Round(2),
		})
	}

	for _, b := range in.SigningBonuses {
		if b.Status != compensation.DecisionApproved {
			continue
		}
		e.Bonuses = append(e.Bonuses, payroll.Contribution{
			Kind:     payroll.KindSigningBonus,
			SourceID: b.ID,
			Label:    b.Name,
			Amount:   c.value(b.Amount, in, "signing_bonus.amount", b.ID).Round(2),
		})
	}

	for _, b := range in.TerminationBenefits {
		if b.Status != compensation.DecisionApproved {
			continue
		}
		e.Benefits = append(e.Benefits, payroll.Contribution{
			Kind:     payroll.KindTerminationBenefit,
			SourceID: b.ID,
			Label:    b.Name,
			Amount:   c.value(b.Amount, in, "termination_benefit.amount", b.ID).Round(2),
		})
	}

	// Pending refunds are already owed; execution marks them paid.
	for _, r := range in.Refunds {
		if r.Status != compensation.RefundStatusPending {
			continue
		}
		e.Refunds = append(e.Refunds, payroll.Contribution{
			Kind:     payroll.KindRefund,
			SourceID: r.ID,
			Label:    r.Description,
			Amount:   c.value(r.Amount, in, "refund.amount", r.ID).Round(2),
		})
	}

	return e
}

// ========== DEDUCTIONS ==========

func (c *Calculator) deductions(in *CalculationInput, base, gross decimal.Decimal, daysInPeriod int) payroll.DeductionsDetails {
	d := payroll.DeductionsDetails{
		Taxes:      []payroll.Contribution{},
		Insurances: []payroll.Contribution{},
		Penalties: payroll.PenaltiesDetails{
			Items:          []payroll.Contribution{},
			AmountDeducted: decimal.Zero,
		},
		UnpaidLeaves: payroll.UnpaidLeaveDetails{
			Deduction: decimal.Zero,
			Details:   []payroll.Contribution{},
		},
	}

	for _, rule := range in.Snapshot.TaxRules {
		rate := c.value(rule.Rate, in, "tax_rule.rate", rule.ID)
		d.Taxes = append(d.Taxes, payroll.Contribution{
			Kind:     payroll.KindTax,
			SourceID: rule.ID,
			Label:    rule.Name,
			Rate:     ratePtr(rate),
			Amount:   base.Mul(rate).Div(hundred).Round(2),
		})
	}

	for _, bracket := range in.Snapshot.InsuranceBrackets {
		if !bracket.Contains(gross) {
			continue
		}
		rate := c.value(bracket.EmployeeRate, in, "insurance_bracket.employee_rate", bracket.ID)
		employerRate := c.value(bracket.EmployerRate, in, "insurance_bracket.employer_rate", bracket.ID)
		d.Insurances = append(d.Insurances, payroll.Contribution{
			Kind:         payroll.KindInsurance,
			SourceID:     bracket.ID,
			Label:        bracket.Name,
			Rate:         ratePtr(rate),
			EmployerRate: ratePtr(employerRate),
			Amount:       gross.Mul(rate).Div(hundred).Round(2),
		})
	}

	periodStart, periodEnd := dateOnly(in.PeriodStart), dateOnly(in.PeriodEnd)
	for _, p := range in.Penalties {
		date := dateOnly(p.Date)
		if date.Before(periodStart) || date.After(periodEnd) {
			continue
		}
		d.Penalties.Items = append(d.Penalties.Items, payroll.Contribution{
			Kind:     payroll.KindPenalty,
			SourceID: p.ID,
			Label:    p.Reason,
			Amount:   c.value(p.Amount, in, "penalty.amount", p.ID).Round(2),
		})
	}

	d.UnpaidLeaves = unpaidLeave(in.Leaves, base, periodStart, periodEnd, daysInPeriod)

	penalties := payroll.SumContributions(d.Penalties.Items)
	d.Penalties.AmountDeducted = applyMinimumWageFloor(
		gross,
		payroll.SumContributions(d.Taxes),
		payroll.SumContributions(d.Insurances),
		d.UnpaidLeaves.Deduction,
		penalties,
		in.Snapshot.MinimumWage,
	)
	if !d.Penalties.AmountDeducted.Equal(penalties) {
		c.logger.Info("Penalties capped by minimum wage",
			"run_id", in.RunID,
			"employee_id", in.Employee.ID,
			"penalties", penalties.String(),
			"deducted", d.Penalties.AmountDeducted.String(),
		)
	}

	return d
}

// unpaidLeave deducts overlap days of approved unpaid leave at the daily rate
// base/daysInPeriod. Rows of the same leave type are merged.
func unpaidLeave(leaves []leave.LeaveRequest, base decimal.Decimal, periodStart, periodEnd time.Time, daysInPeriod int) payroll.UnpaidLeaveDetails {
	details := payroll.UnpaidLeaveDetails{
		Deduction: decimal.Zero,
		Details:   []payroll.Contribution{},
	}
	if daysInPeriod == 0 {
		return details
	}

	sorted := append([]leave.LeaveRequest(nil), leaves...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	daysByType := make(map[string]int)
	order := make([]leave.LeaveRequest, 0)
	for _, l := range sorted {
		if !l.IsUnpaidApproved() {
			continue
		}
		start := dateOnly(l.StartDate)
		if start.Before(periodStart) {
			start = periodStart
		}
		end := dateOnly(l.EndDate)
		if end.After(periodEnd) {
			end = periodEnd
		}
		days := inclusiveDays(start, end)
		if days == 0 {
			continue
		}
		if _, seen := daysByType[l.LeaveTypeID]; !seen {
			order = append(order, l)
		}
		daysByType[l.LeaveTypeID] += days
	}

	perPeriod := decimal.NewFromInt(int64(daysInPeriod))
	for _, l := range order {
		days := daysByType[l.LeaveTypeID]
		amount := base.Mul(decimal.NewFromInt(int64(days))).Div(perPeriod).Round(2)
		details.Days += days
		details.Deduction = details.Deduction.Add(amount)
		details.Details = append(details.Details, payroll.Contribution{
			Kind:     payroll.KindUnpaidLeave,
			SourceID: l.LeaveTypeID,
			Label:    l.LeaveTypeName,
			Amount:   amount,
			Days:     days,
		})
	}

	return details
}

// applyMinimumWageFloor returns the part of penalties that may be deducted.
// Penalties are capped so they never push net pay below minimumWage; the
// other deductions are never capped.
func applyMinimumWageFloor(gross, taxes, insurance, unpaid, penalties, minimumWage decimal.Decimal) decimal.Decimal {
	beforePenalties := gross.Sub(taxes).Sub(insurance).Sub(unpaid)
	net := beforePenalties.Sub(penalties)
	if !net.LessThan(minimumWage) || !penalties.IsPositive() {
		return penalties
	}

	capAmount := decimal.Max(decimal.Zero, beforePenalties.Sub(minimumWage))
	return decimal.Min(penalties, capAmount)
}
