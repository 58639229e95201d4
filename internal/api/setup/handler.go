package setup

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"licensehub/database"
	domain "licensehub/internal/domain/setup"
	"licensehub/internal/domain/users"
	"licensehub/internal/validation"
)

// StartInstallation opens a new wizard run. Refused once an admin account
// exists; the installer is a first-boot surface only.
func StartInstallation(c *gin.Context) {
	var adminCount int64
	if err := database.DB.Model(&users.User{}).Where("role = ?", "admin").Count(&adminCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check installation state"})
		return
	}
	if adminCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Application is already installed"})
		return
	}

	run := domain.InstallationRun{
		ID:          uuid.NewString(),
		CurrentStep: domain.StepLicense,
		Draft:       domain.DraftMap{},
	}
	if err := database.DB.Create(&run).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start installation"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"installation_id": run.ID, "current_step": run.CurrentStep})
}

// GetInstallation reports the run's progress. Draft values are not echoed
// back; they may contain credentials.
func GetInstallation(c *gin.Context) {
	run, ok := loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"installation_id": run.ID,
		"current_step":    run.CurrentStep,
		"completed":       run.CompletedAt != nil,
	})
}

// SubmitStep validates one wizard step and merges it into the persisted
// draft. Nothing outside the run record changes until completion.
func SubmitStep(c *gin.Context) {
	run, ok := loadRun(c)
	if !ok {
		return
	}

	var body struct {
		Step   string            `json:"step"`
		Fields map[string]string `json:"fields"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := domain.ApplyStep(run, body.Step, body.Fields); err != nil {
		if errors.Is(err, validation.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply step"})
		return
	}

	if err := database.DB.Save(run).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save installation progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"installation_id": run.ID, "current_step": run.CurrentStep})
}

// CompleteInstallation commits the accumulated draft: the admin account is
// created and the run is sealed, all in one transaction.
func CompleteInstallation(c *gin.Context) {
	run, ok := loadRun(c)
	if !ok {
		return
	}
	if !run.ReadyToComplete() {
		c.JSON(http.StatusConflict, gin.H{"error": "Installation steps are not complete"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(run.Draft["admin_password"]), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash admin password"})
		return
	}
	password := string(hashed)

	admin := users.User{
		Name:         run.Draft["admin_name"],
		Email:        run.Draft["admin_email"],
		Password:     &password,
		AuthProvider: "local",
		Role:         "admin",
		IsVerified:   true,
	}

	now := time.Now()
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		run.CompletedAt = &now
		delete(run.Draft, "admin_password")
		return tx.Save(run).Error
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to complete installation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Installation completed", "admin_id": admin.ID})
}

func loadRun(c *gin.Context) (*domain.InstallationRun, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid installation id"})
		return nil, false
	}

	var run domain.InstallationRun
	if err := database.DB.First(&run, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Installation not found"})
		return nil, false
	}
	return &run, true
}
