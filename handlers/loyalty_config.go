package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// LoyaltyConfigHandler manages the earning-rate knobs. Values are read at
// settlement time, so an update applies from the next transaction onward.
type LoyaltyConfigHandler struct {
	DB *gorm.DB
}

func (h *LoyaltyConfigHandler) List(c *gin.Context) {
	var rows []models.LoyaltyConfig
	if err := h.DB.Order("key ASC").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch config"})
		return
	}

	// Absent keys are reported with their defaults.
	config := map[string]string{}
	for k, v := range models.DefaultLoyaltyConfig {
		config[k] = v
	}
	for _, row := range rows {
		config[row.Key] = row.Value
	}
	c.JSON(http.StatusOK, gin.H{"config": config})
}

func (h *LoyaltyConfigHandler) Update(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	if _, known := models.DefaultLoyaltyConfig[req.Key]; !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown config key"})
		return
	}

	var updatedBy *uuid.UUID
	if userID, exists := c.Get("user_id"); exists {
		id := userID.(uuid.UUID)
		updatedBy = &id
	}

	var row models.LoyaltyConfig
	err := h.DB.Where("key = ?", req.Key).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = models.LoyaltyConfig{Key: req.Key, Value: req.Value, UpdatedBy: updatedBy}
		err = h.DB.Create(&row).Error
	} else if err == nil {
		err = h.DB.Model(&row).Updates(map[string]interface{}{
			"value":      req.Value,
			"updated_by": updatedBy,
		}).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}
