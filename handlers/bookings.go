package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/models"
	"barberops-backend/notify"
	"barberops-backend/utils"
)

type BookingHandler struct {
	DB       *gorm.DB
	Notifier *notify.Dispatcher
}

// Create books a visit ahead of payment. The same dedup rule the
// settlement path uses applies here: one live booking per (customer,
// service, date, barber).
func (h *BookingHandler) Create(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ServiceID uuid.UUID  `json:"service_id" binding:"required"`
		BranchID  uuid.UUID  `json:"branch_id" binding:"required"`
		BarberID  *uuid.UUID `json:"barber_id"`
		Date      string     `json:"date" binding:"required"`
		TimeSlot  string     `json:"time_slot"`
		Notes     string     `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date must be YYYY-MM-DD"})
		return
	}

	var service models.Service
	if err := h.DB.First(&service, "id = ?", req.ServiceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}

	query := h.DB.Model(&models.Booking{}).
		Where("customer_id = ? AND service_id = ? AND date = ? AND status IN ?",
			userID, req.ServiceID, req.Date, models.NonTerminalBookingStatuses)
	if req.BarberID != nil {
		query = query.Where("barber_id = ?", *req.BarberID)
	} else {
		query = query.Where("barber_id IS NULL")
	}
	var existing int64
	query.Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "You already have a booking for this service on that date"})
		return
	}

	booking := models.Booking{
		CustomerID: userID.(uuid.UUID),
		ServiceID:  req.ServiceID,
		BranchID:   req.BranchID,
		BarberID:   req.BarberID,
		Date:       req.Date,
		TimeSlot:   req.TimeSlot,
		Status:     models.BookingStatusPending,
		Notes:      req.Notes,
	}
	if err := h.DB.Create(&booking).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	if h.Notifier != nil {
		h.Notifier.SendToRole("branch_admin", &req.BranchID, models.NotificationBookingCreated,
			"New booking",
			fmt.Sprintf("%s booked for %s.", service.Name, req.Date),
			models.NotificationMetadata{BookingID: booking.ID.String(), BookingCode: booking.BookingCode})
	}

	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) MyBookings(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var bookings []models.Booking
	if err := h.DB.Preload("Service").Preload("Barber").
		Where("customer_id = ?", userID).
		Order("date DESC, created_at DESC").Limit(50).Find(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *BookingHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := h.DB.Model(&models.Booking{})
	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var total int64
	query.Count(&total)

	var bookings []models.Booking
	if err := query.Preload("Customer").Preload("Service").Preload("Barber").
		Order("date DESC, created_at DESC").Offset(offset).Limit(limit).Find(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h *BookingHandler) Get(c *gin.Context) {
	var booking models.Booking
	if err := h.DB.Preload("Customer").Preload("Service").Preload("Barber").
		First(&booking, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdateStatus moves a booking through its state machine.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var booking models.Booking
	if err := h.DB.First(&booking, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}

	newStatus := models.BookingStatus(req.Status)
	if !models.IsValidBookingTransition(booking.Status, newStatus) {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Cannot move booking from %s to %s", booking.Status, newStatus),
		})
		return
	}

	if err := h.DB.Model(&booking).Update("status", newStatus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking"})
		return
	}
	booking.Status = newStatus

	if h.Notifier != nil && newStatus == models.BookingStatusConfirmed {
		h.Notifier.Send(booking.CustomerID, models.NotificationBookingConfirmed,
			"Booking confirmed",
			fmt.Sprintf("Your booking %s on %s is confirmed.", booking.BookingCode, booking.Date),
			models.NotificationMetadata{BookingID: booking.ID.String(), BookingCode: booking.BookingCode})
	}

	var customer models.User
	if err := h.DB.First(&customer, "id = ?", booking.CustomerID).Error; err == nil {
		var service models.Service
		serviceName := "your service"
		if err := h.DB.First(&service, "id = ?", booking.ServiceID).Error; err == nil {
			serviceName = service.Name
		}
		utils.SendBookingStatusEmail(customer.Email, customer.Name, serviceName, string(newStatus))
	}

	c.JSON(http.StatusOK, booking)
}

// Cancel lets the customer cancel their own live booking.
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var booking models.Booking
	if err := h.DB.First(&booking, "id = ? AND customer_id = ?", c.Param("id"), userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}

	if !models.IsValidBookingTransition(booking.Status, models.BookingStatusCancelled) {
		c.JSON(http.StatusConflict, gin.H{"error": "Booking can no longer be cancelled"})
		return
	}

	if err := h.DB.Model(&booking).Update("status", models.BookingStatusCancelled).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel booking"})
		return
	}
	booking.Status = models.BookingStatusCancelled
	c.JSON(http.StatusOK, booking)
}
