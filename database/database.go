package database

import (
	"fmt"
	"log"
	"os"

	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/payments"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/setup"
	"licensehub/internal/domain/users"
	"licensehub/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: utils.GetGormLogger(),
		// Unique-constraint conflicts must surface as gorm.ErrDuplicatedKey
		// for the invoice-number and webhook-dedup insert paths.
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := DB.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Fatal("Failed to enable pgcrypto extension:", err)
	}

	if err := DB.AutoMigrate(
		// core
		&users.User{},
		&users.VerificationToken{},
		&products.Product{},

		// licensing + billing
		&licenses.License{},
		&invoices.Invoice{},
		&payments.PaymentSetting{},
		&payments.WebhookEvent{},

		// installer
		&setup.InstallationRun{},
	); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	fmt.Println("Connected and migrated successfully")
}
