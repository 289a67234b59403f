// internal/app/features/courses/handler.go
package courses

import (
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	groupstore "github.com/dalemusser/coursehub/internal/app/store/groups"
	lessonstore "github.com/dalemusser/coursehub/internal/app/store/lessons"
	subscriptionstore "github.com/dalemusser/coursehub/internal/app/store/subscriptions"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/keylock"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the course catalog. Students see available courses they
// are not yet subscribed to; admins see and edit everything. Deletion
// takes the per-course lock that payments hold while placing.
type Handler struct {
	DB            *mongo.Database
	Courses       *coursestore.Store
	Lessons       *lessonstore.Store
	Groups        *groupstore.Store
	Subscriptions *subscriptionstore.Store
	Locker        keylock.Locker
	LockTTL       time.Duration
	ErrLog        *uierrors.ErrorLogger
	AuditLog      *auditlog.Logger
	Log           *zap.Logger
}

func NewHandler(db *mongo.Database, locker keylock.Locker, errLog *uierrors.ErrorLogger,
	auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	if locker == nil {
		locker = keylock.NewMemoryLocker()
	}
	return &Handler{
		DB:            db,
		Courses:       coursestore.New(db),
		Lessons:       lessonstore.New(db),
		Groups:        groupstore.New(db),
		Subscriptions: subscriptionstore.New(db),
		Locker:        locker,
		LockTTL:       enrollment.DefaultConfig().LockTTL,
		ErrLog:        errLog,
		AuditLog:      auditLog,
		Log:           logger,
	}
}

// courseView is a course as listed, with its lesson count.
type courseView struct {
	models.Course
	LessonsCount int `json:"lessons_count"`
}
