// Package notify sends transactional email after billing events. Sending is
// best effort; callers log failures and never roll back payment state over
// a mail error.
package notify

import (
	"fmt"
	"net/smtp"

	"licensehub/config"
	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/users"
)

func SendInvoicePaidEmail(user *users.User, inv *invoices.Invoice) error {
	subject := fmt.Sprintf("Payment received for invoice %s", inv.InvoiceNumber)
	body := fmt.Sprintf(
		"Hi %s,\n\nWe have received your payment of %s %s for invoice %s.\n\nThank you!\n",
		user.Name, inv.TotalAmount.StringFixed(2), inv.Currency, inv.InvoiceNumber)
	return send(user.Email, subject, body)
}

func SendLicenseIssuedEmail(user *users.User, lic *licenses.License) error {
	subject := "Your license key"
	expiry := "never"
	if lic.LicenseExpiresAt != nil {
		expiry = lic.LicenseExpiresAt.Format("2006-01-02")
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour license is ready:\n\nKey: %s\nExpires: %s\n\nThank you!\n",
		user.Name, lic.LicenseKey, expiry)
	return send(user.Email, subject, body)
}

func send(to, subject, body string) error {
	if config.SMTP_HOST == "" {
		return fmt.Errorf("smtp not configured")
	}

	auth := smtp.PlainAuth("", config.SMTP_FROM, config.SMTP_PASSWORD, config.SMTP_HOST)

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + config.SMTP_FROM + "\r\n" +
		"To: " + to + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	return smtp.SendMail(config.SMTP_HOST+":"+config.SMTP_PORT, auth, config.SMTP_FROM, []string{to}, message)
}
