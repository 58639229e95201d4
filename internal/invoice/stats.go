package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"licensehub/internal/domain/invoices"
	"licensehub/internal/validation"
)

// Stats is the aggregate view over the whole invoice set.
type Stats struct {
	TotalInvoices     int64           `json:"total_invoices"`
	PaidInvoices      int64           `json:"paid_invoices"`
	PendingInvoices   int64           `json:"pending_invoices"`
	OverdueInvoices   int64           `json:"overdue_invoices"`
	CancelledInvoices int64           `json:"cancelled_invoices"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingRevenue    decimal.Decimal `json:"pending_revenue"`
	OverdueRevenue    decimal.Decimal `json:"overdue_revenue"`
}

type PeriodRevenue struct {
	Period         string          `json:"period"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	InvoiceCount   int64           `json:"invoice_count"`
	AverageInvoice decimal.Decimal `json:"average_invoice"`
}

type StatusBucket struct {
	Count      int64           `json:"count"`
	Revenue    decimal.Decimal `json:"revenue"`
	Percentage float64         `json:"percentage"`
}

type CustomerRevenue struct {
	UserID       uint            `json:"user_id"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	InvoiceCount int64           `json:"invoice_count"`
}

type MonthlyTrend struct {
	Month         string          `json:"month"`
	TotalInvoices int64           `json:"total_invoices"`
	PaidInvoices  int64           `json:"paid_invoices"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type OverdueInvoice struct {
	ID            uint            `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	UserID        uint            `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date"`
	DaysOverdue   int             `json:"days_overdue"`
}

func GetInvoiceStats(db *gorm.DB) (*Stats, error) {
	stats := &Stats{}

	if err := db.Model(&invoices.Invoice{}).Count(&stats.TotalInvoices).Error; err != nil {
		return nil, err
	}

	counts := map[string]*int64{
		invoices.StatusPaid:      &stats.PaidInvoices,
		invoices.StatusPending:   &stats.PendingInvoices,
		invoices.StatusOverdue:   &stats.OverdueInvoices,
		invoices.StatusCancelled: &stats.CancelledInvoices,
	}
	for status, dest := range counts {
		if err := db.Model(&invoices.Invoice{}).Where("status = ?", status).Count(dest).Error; err != nil {
			return nil, err
		}
	}

	sums := map[string]*decimal.Decimal{
		invoices.StatusPaid:    &stats.TotalRevenue,
		invoices.StatusPending: &stats.PendingRevenue,
		invoices.StatusOverdue: &stats.OverdueRevenue,
	}
	for status, dest := range sums {
		sum, err := sumAmountByStatus(db, status)
		if err != nil {
			return nil, err
		}
		*dest = validation.SanitizeAmount(sum)
	}

	return stats, nil
}

// GetRevenueByPeriod aggregates paid invoices inside the current day, week,
// month or year.
func GetRevenueByPeriod(db *gorm.DB, period string) (*PeriodRevenue, error) {
	start, end, err := periodWindow(period, time.Now())
	if err != nil {
		return nil, err
	}

	// Chains are not reusable after execution, so each aggregate gets a
	// fresh query.
	paidInWindow := func() *gorm.DB {
		return db.Model(&invoices.Invoice{}).
			Where("status = ? AND created_at >= ? AND created_at < ?", invoices.StatusPaid, start, end)
	}

	result := &PeriodRevenue{Period: period}
	if err := paidInWindow().Count(&result.InvoiceCount).Error; err != nil {
		return nil, err
	}

	var total decimal.Decimal
	if err := paidInWindow().Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return nil, err
	}
	result.TotalRevenue = validation.SanitizeAmount(total)

	var avg decimal.Decimal
	if err := paidInWindow().Select("COALESCE(AVG(amount), 0)").Scan(&avg).Error; err != nil {
		return nil, err
	}
	result.AverageInvoice = validation.SanitizeAmount(avg)

	return result, nil
}

func GetStatusDistribution(db *gorm.DB) (map[string]StatusBucket, error) {
	var total int64
	if err := db.Model(&invoices.Invoice{}).Count(&total).Error; err != nil {
		return nil, err
	}

	distribution := make(map[string]StatusBucket, 4)
	for _, status := range []string{invoices.StatusPaid, invoices.StatusPending, invoices.StatusOverdue, invoices.StatusCancelled} {
		var count int64
		if err := db.Model(&invoices.Invoice{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		revenue, err := sumAmountByStatus(db, status)
		if err != nil {
			return nil, err
		}
		distribution[status] = StatusBucket{
			Count:      count,
			Revenue:    validation.SanitizeAmount(revenue),
			Percentage: percentage(count, total),
		}
	}
	return distribution, nil
}

func GetTopCustomersByRevenue(db *gorm.DB, limit int) ([]CustomerRevenue, error) {
	if limit <= 0 {
		limit = 10
	}
	var customers []CustomerRevenue
	err := db.Model(&invoices.Invoice{}).
		Select("user_id, SUM(amount) AS total_revenue, COUNT(*) AS invoice_count").
		Where("status = ?", invoices.StatusPaid).
		Group("user_id").
		Order("total_revenue DESC").
		Limit(limit).
		Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i].TotalRevenue = validation.SanitizeAmount(customers[i].TotalRevenue)
	}
	return customers, nil
}

// GetInvoiceTrends returns per-month counts and revenue for the trailing
// months window.
func GetInvoiceTrends(db *gorm.DB, months int) ([]MonthlyTrend, error) {
	if months <= 0 {
		months = 12
	}

	now := time.Now()
	trends := make([]MonthlyTrend, 0, months)
	for i := months - 1; i >= 0; i-- {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)
		inWindow := func() *gorm.DB {
			return db.Model(&invoices.Invoice{}).
				Where("created_at >= ? AND created_at < ?", monthStart, monthEnd)
		}

		trend := MonthlyTrend{Month: monthStart.Format("2006-01")}
		if err := inWindow().Count(&trend.TotalInvoices).Error; err != nil {
			return nil, err
		}
		if err := inWindow().Where("status = ?", invoices.StatusPaid).Count(&trend.PaidInvoices).Error; err != nil {
			return nil, err
		}
		var revenue decimal.Decimal
		err := db.Model(&invoices.Invoice{}).
			Where("created_at >= ? AND created_at < ? AND status = ?", monthStart, monthEnd, invoices.StatusPaid).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&revenue).Error
		if err != nil {
			return nil, err
		}
		trend.Revenue = validation.SanitizeAmount(revenue)
		trends = append(trends, trend)
	}
	return trends, nil
}

// GetOverdueInvoices returns invoices explicitly marked overdue plus pending
// invoices whose due date has passed.
func GetOverdueInvoices(db *gorm.DB) ([]OverdueInvoice, error) {
	now := time.Now()
	var rows []invoices.Invoice
	err := db.Where("status = ?", invoices.StatusOverdue).
		Or("status = ? AND due_date < ?", invoices.StatusPending, now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	overdue := make([]OverdueInvoice, 0, len(rows))
	for _, inv := range rows {
		days := 0
		if inv.DueDate != nil {
			days = int(now.Sub(*inv.DueDate).Hours() / 24)
		}
		overdue = append(overdue, OverdueInvoice{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			UserID:        inv.UserID,
			Amount:        validation.SanitizeAmount(inv.Amount),
			DueDate:       inv.DueDate,
			DaysOverdue:   days,
		})
	}
	return overdue, nil
}

func sumAmountByStatus(db *gorm.DB, status string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.Model(&invoices.Invoice{}).
		Where("status = ?", status).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func percentage(value, total int64) float64 {
	if total == 0 {
		return 0
	}
	ratio := decimal.NewFromInt(value).
		Div(decimal.NewFromInt(total)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := ratio.Float64()
	return f
}

// periodWindow resolves the [start, end) bounds for a reporting period.
func periodWindow(period string, now time.Time) (time.Time, time.Time, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case "day":
		return dayStart, dayStart.AddDate(0, 0, 1), nil
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // weeks start on Monday
		}
		weekStart := dayStart.AddDate(0, 0, -(weekday - 1))
		return weekStart, weekStart.AddDate(0, 0, 7), nil
	case "month":
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return monthStart, monthStart.AddDate(0, 1, 0), nil
	case "year":
		yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return yearStart, yearStart.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid period %q", ErrValidation, period)
	}
}
