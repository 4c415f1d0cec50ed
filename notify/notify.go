package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/firebase"
	"barberops-backend/models"
)

// Dispatcher persists a notification row per recipient and pushes it over
// FCM when the recipient has a registered device token. Delivery is
// fire-and-forget: failures are logged, never returned to the caller.
type Dispatcher struct {
	DB   *gorm.DB
	Push firebase.PushClient
}

// Send records the notification and attempts push delivery in the
// background.
func (d *Dispatcher) Send(userID uuid.UUID, notifType models.NotificationType, title, body string, meta models.NotificationMetadata) {
	notification := models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Body:     body,
		Metadata: meta,
	}
	if err := d.DB.Create(&notification).Error; err != nil {
		log.Printf("[NOTIFY] failed to persist notification for user %s: %v", userID, err)
		return
	}

	if d.Push == nil {
		return
	}

	var user models.User
	if err := d.DB.First(&user, "id = ?", userID).Error; err != nil || user.FCMToken == "" {
		return
	}

	token := user.FCMToken
	// Push delivery happens off the request path, same as the email flow.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		data := map[string]string{"type": string(notifType)}
		if meta.TransactionID != "" {
			data["transaction_id"] = meta.TransactionID
		}
		if meta.BookingID != "" {
			data["booking_id"] = meta.BookingID
		}
		if err := d.Push.SendToToken(ctx, token, title, body, data); err != nil {
			log.Printf("[NOTIFY] push delivery failed for user %s: %v", userID, err)
		}
	}()
}

// SendToRole fans a notification out to every user holding the role,
// optionally scoped to one branch.
func (d *Dispatcher) SendToRole(role string, branchID *uuid.UUID, notifType models.NotificationType, title, body string, meta models.NotificationMetadata) {
	query := d.DB.Where("role = ?", role)
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		log.Printf("[NOTIFY] failed to resolve %s recipients: %v", role, err)
		return
	}
	for _, user := range users {
		d.Send(user.ID, notifType, title, body, meta)
	}
}
