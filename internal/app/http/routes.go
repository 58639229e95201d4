package routes

import (
	"github.com/gin-gonic/gin"

	authapi "licensehub/internal/api/auth"
	invoicesapi "licensehub/internal/api/invoices"
	licensesapi "licensehub/internal/api/licenses"
	paymentsapi "licensehub/internal/api/payments"
	setupapi "licensehub/internal/api/setup"
	webhooksapi "licensehub/internal/api/webhooks"
	"licensehub/internal/app/http/middleware"
)

func RegisterRoutes(r *gin.Engine) {
	// Webhooks carry provider signatures over the raw body; no input
	// rewriting may touch them.
	r.POST("/webhooks/:gateway", webhooksapi.HandleWebhook)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Installer wizard, usable before any account exists.
	r.POST("/setup", setupapi.StartInstallation)
	r.GET("/setup/:id", setupapi.GetInstallation)
	r.POST("/setup/:id/step", setupapi.SubmitStep)
	r.POST("/setup/:id/complete", setupapi.CompleteInstallation)

	// Buyer returns from gateway approval land here; the reference in the
	// query string is all that identifies the payment.
	r.GET("/payments/verify/paypal", paymentsapi.VerifyPayPalPayment)
	r.GET("/payments/verify/stripe", paymentsapi.VerifyStripePayment)
	r.GET("/payments/gateways", paymentsapi.ListGateways)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)
	public.GET("/verify", authapi.VerifyEmail)
	public.POST("/resend-verification", authapi.ResendVerification)
	public.POST("/request-password-reset", authapi.RequestPasswordReset)
	public.POST("/reset-password", authapi.ResetPassword)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.POST("/change-password", authapi.ChangePassword)

	auth.POST("/payments", paymentsapi.CreatePayment)
	auth.GET("/invoices", invoicesapi.ListMyInvoices)
	auth.GET("/invoices/:id", invoicesapi.GetMyInvoice)
	auth.GET("/licenses", licensesapi.ListMyLicenses)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))

	admin.GET("/invoices", invoicesapi.ListInvoicesByStatus)
	admin.GET("/invoices/overdue", invoicesapi.GetOverdue)
	admin.GET("/invoices/stats", invoicesapi.GetStats)
	admin.GET("/invoices/revenue", invoicesapi.GetRevenue)
	admin.GET("/invoices/distribution", invoicesapi.GetDistribution)
	admin.GET("/invoices/top-customers", invoicesapi.GetTopCustomers)
	admin.GET("/invoices/trends", invoicesapi.GetTrends)
	admin.GET("/invoices/:id", invoicesapi.GetInvoiceDetails)
	admin.PUT("/invoices/:id/status", invoicesapi.UpdateStatus)
	admin.POST("/invoices/:id/cancel", invoicesapi.Cancel)
	admin.POST("/invoices/renewal", invoicesapi.CreateRenewal)

	admin.POST("/licenses", licensesapi.GrantLicense)
	admin.GET("/licenses/:id", licensesapi.GetLicenseDetails)
	admin.POST("/licenses/expire-lapsed", licensesapi.ExpireLapsedLicenses)

	admin.GET("/gateways", paymentsapi.ListGatewaySettings)
	admin.PUT("/gateways/:gateway", paymentsapi.UpdateGatewaySettings)
}
