// Package notify delivers best-effort user notifications: an in-app inbox
// document plus an optional email. Delivery never blocks and never fails the
// caller; errors are logged and swallowed.
package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/models"
)

// EmailSender sends one email. utils.SendEmail satisfies this.
type EmailSender func(toName, toEmail, subject, textContent, htmlContent string) error

// Sender is the concrete notifier handed to looks, credits and generation.
type Sender struct {
	notifications *mongo.Collection
	users         *mongo.Collection
	sendEmail     EmailSender
}

func NewSender(notifications, users *mongo.Collection, sendEmail EmailSender) *Sender {
	return &Sender{notifications: notifications, users: users, sendEmail: sendEmail}
}

// Notify dispatches asynchronously and returns immediately.
func (s *Sender) Notify(userID primitive.ObjectID, title, body string, data map[string]string, channel string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.deliver(ctx, userID, title, body, data, channel)
	}()
}

func (s *Sender) deliver(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string, channel string) {
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		Channel:   channel,
		CreatedAt: time.Now(),
	}
	if _, err := s.notifications.InsertOne(ctx, notification); err != nil {
		log.Printf("Failed to store notification for %s: %v", userID.Hex(), err)
	}

	if channel != models.ChannelEmail || s.sendEmail == nil {
		return
	}

	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Failed to load user %s for email notification: %v", userID.Hex(), err)
		}
		return
	}
	if err := s.sendEmail(user.Name, user.Email, title, body, "<p>"+body+"</p>"); err != nil {
		log.Printf("Failed to email notification to %s: %v", user.Email, err)
	}
}
