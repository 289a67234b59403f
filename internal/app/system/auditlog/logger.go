// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for one category of events.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout).
	Auth string
	// Payments controls logging for pay outcomes, group creation and
	// subscription expiry.
	Payments string
	// Admin controls logging for admin actions (users, balances, catalog).
	Admin string
}

// Store is where events are persisted. *audit.Store implements it.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

var _ enrollment.Auditor = (*Logger)(nil)

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request. The first entry of
// X-Forwarded-For wins, then X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.CourseID != nil {
		fields = append(fields, zap.String("course_id", event.CourseID.Hex()))
	}
	if event.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", event.PaymentID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryPayments:
		s = l.config.Payments
	case audit.CategoryAdmin:
		s = l.config.Admin
	}
	if s == "" {
		return All
	}
	return s
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailed logs a rejected login. userID is nil when no user matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, userID *primitive.ObjectID, email, eventType, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"attempted_email": email},
	})
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
	if uid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		event.UserID = &uid
	}
	l.Log(ctx, event)
}

// --- Payment Events ---

// PaymentCompleted logs a successful pay.
func (l *Logger) PaymentCompleted(ctx context.Context, res enrollment.Result, price money.Amount) {
	sub := res.Subscription
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventPaymentSucceeded,
		UserID:    &sub.UserID,
		CourseID:  &sub.CourseID,
		PaymentID: res.PaymentID,
		Success:   true,
		Details: map[string]string{
			"subscription_id": sub.ID.Hex(),
			"group_id":        res.Group.ID.Hex(),
			"group_name":      res.Group.Name,
			"price":           price.String(),
			"balance":         res.Balance.String(),
		},
	})
}

// PaymentRejected logs a pay that ended without a subscription.
func (l *Logger) PaymentRejected(ctx context.Context, userID, courseID primitive.ObjectID, paymentID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryPayments,
		EventType:     audit.EventPaymentRejected,
		UserID:        &userID,
		CourseID:      &courseID,
		PaymentID:     paymentID,
		Success:       false,
		FailureReason: reason,
	})
}

// PaymentRateLimited logs a pay request refused by the rate limiter.
func (l *Logger) PaymentRateLimited(ctx context.Context, r *http.Request, userID, courseID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryPayments,
		EventType:     audit.EventPaymentRateLimited,
		UserID:        &userID,
		CourseID:      &courseID,
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limited",
	})
}

// GroupCreated logs a group created by placement or by an admin.
func (l *Logger) GroupCreated(ctx context.Context, g models.Group, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventGroupCreated,
		CourseID:  &g.CourseID,
		Success:   true,
		Details: map[string]string{
			"group_id":   g.ID.Hex(),
			"group_name": g.Name,
			"number":     strconv.Itoa(g.Number),
			"reason":     reason,
		},
	})
}

// SubscriptionExpired logs a subscription deactivated by the expiry worker.
func (l *Logger) SubscriptionExpired(ctx context.Context, sub models.Subscription) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventSubscriptionExpired,
		UserID:    &sub.UserID,
		CourseID:  &sub.CourseID,
		PaymentID: sub.PaymentID,
		Success:   true,
		Details: map[string]string{
			"subscription_id": sub.ID.Hex(),
			"end_date":        sub.EndDate.UTC().Format("2006-01-02T15:04:05Z"),
		},
	})
}

// --- Admin Events ---

// UserCreated logs the creation of a user together with its balance.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, role string, initial money.Amount) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserCreated,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"role":            role,
			"initial_balance": initial.String(),
		},
	})
}

// BalanceCredited logs an admin top-up.
func (l *Logger) BalanceCredited(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, amount, balance money.Amount) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBalanceCredited,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"amount":  amount.String(),
			"balance": balance.String(),
		},
	})
}

// SubscriptionDeactivated logs an admin deactivation.
func (l *Logger) SubscriptionDeactivated(ctx context.Context, r *http.Request, actorID primitive.ObjectID, sub models.Subscription) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventSubscriptionDeactivated,
		UserID:    &sub.UserID,
		ActorID:   &actorID,
		CourseID:  &sub.CourseID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"subscription_id": sub.ID.Hex()},
	})
}

// CatalogChanged logs a course or lesson create, update or delete.
// eventType is one of the audit.EventCourse* / audit.EventLesson* values.
func (l *Logger) CatalogChanged(ctx context.Context, r *http.Request, actorID, courseID primitive.ObjectID, eventType, title string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		CourseID:  &courseID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"title": title},
	})
}
