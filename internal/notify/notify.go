// Package notify turns notification intents into in-app records or emails.
//
// The ledger only produces Intents. A Dispatcher decides how each one is
// delivered, and delivery failures are logged and swallowed so that they
// never affect the balance update that produced them.
package notify

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"budgetapi/internal/logger"
	"budgetapi/internal/models"
)

// DefaultSubject is used for emails that don't carry their own subject.
const DefaultSubject = "BudgetApi"

// Channel selects how an intent is delivered.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// Intent is a request to tell a user something.
type Intent struct {
	UserID  uint
	Email   string
	Subject string
	Text    string
	Channel Channel
}

// InApp builds an intent stored as a Notification row.
func InApp(userID uint, text string) Intent {
	return Intent{UserID: userID, Text: text, Channel: ChannelInApp}
}

// ForUser builds an email intent when the user has an address on file and
// an in-app intent otherwise. Exactly one of the two is produced.
func ForUser(user *models.User, subject, text string) Intent {
	if user.HasEmail() {
		return Intent{
			UserID:  user.ID,
			Email:   *user.Email,
			Subject: subject,
			Text:    text,
			Channel: ChannelEmail,
		}
	}
	return InApp(user.ID, text)
}

// Dispatcher delivers intents. Implementations must not block the caller on
// slow delivery for long and must not return delivery errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...Intent)
}

// Mailer sends a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Router stores in-app intents as Notification rows and hands email intents
// to a Mailer.
type Router struct {
	db     *gorm.DB
	mailer Mailer
	log    *zap.SugaredLogger
}

// NewRouter creates a Router. A nil mailer falls back to LogMailer.
func NewRouter(db *gorm.DB, mailer Mailer) *Router {
	if mailer == nil {
		mailer = NewLogMailer()
	}
	return &Router{db: db, mailer: mailer, log: logger.Named("notify")}
}

// Dispatch delivers every intent, logging failures.
func (r *Router) Dispatch(ctx context.Context, intents ...Intent) {
	for _, intent := range intents {
		if err := r.deliver(ctx, intent); err != nil {
			r.log.Errorw("notification delivery failed",
				"user_id", intent.UserID,
				"channel", intent.Channel,
				"error", err,
			)
		}
	}
}

func (r *Router) deliver(ctx context.Context, intent Intent) error {
	if intent.Channel == ChannelEmail && intent.Email != "" {
		subject := intent.Subject
		if subject == "" {
			subject = DefaultSubject
		}
		return r.mailer.Send(ctx, intent.Email, subject, intent.Text)
	}

	return r.db.WithContext(ctx).Create(&models.Notification{
		UserID: intent.UserID,
		Text:   intent.Text,
	}).Error
}

// Discard is a Dispatcher that drops every intent.
type Discard struct{}

// Dispatch implements Dispatcher.
func (Discard) Dispatch(context.Context, ...Intent) {}

// Recorder is a Dispatcher that keeps intents in memory.
type Recorder struct {
	Intents []Intent
}

// Dispatch implements Dispatcher.
func (r *Recorder) Dispatch(_ context.Context, intents ...Intent) {
	r.Intents = append(r.Intents, intents...)
}
