package firebase

import (
	"context"
	"log"
	"time"

	"reelclub-backend/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifier pushes FCM messages to members. Delivery is fire-and-forget:
// one attempt, errors logged and swallowed, never blocks the caller.
type Notifier struct {
	DB *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{DB: db}
}

func (n *Notifier) Notify(memberID uuid.UUID, title, body string, data map[string]string) {
	go n.send(memberID, title, body, data)
}

func (n *Notifier) send(memberID uuid.UUID, title, body string, data map[string]string) {
	if App == nil {
		return
	}

	var member models.Member
	if err := n.DB.Where("id = ?", memberID).First(&member).Error; err != nil {
		log.Printf("Notification skipped, member %s not found: %v", memberID, err)
		return
	}
	if member.FCMToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := App.Messaging(ctx)
	if err != nil {
		log.Printf("Notification failed, messaging client unavailable: %v", err)
		return
	}

	msg := &messaging.Message{
		Token: member.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := client.Send(ctx, msg); err != nil {
		log.Printf("Notification to member %s failed: %v", memberID, err)
	}
}
