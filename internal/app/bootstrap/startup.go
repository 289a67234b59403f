// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	balancestore "github.com/dalemusser/coursehub/internal/app/store/balances"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	groupstore "github.com/dalemusser/coursehub/internal/app/store/groups"
	subscriptionstore "github.com/dalemusser/coursehub/internal/app/store/subscriptions"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/keylock"
	"github.com/dalemusser/coursehub/internal/app/system/metrics"
	"github.com/dalemusser/coursehub/internal/app/system/ratelimit"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/app/system/txn"
	"github.com/dalemusser/coursehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Services are the long-lived objects built once at startup and shared by
// every request.
type Services struct {
	Locker       keylock.Locker
	RedisLocker  *keylock.RedisLocker // nil with the memory backend
	Metrics      *metrics.Metrics
	AuditLog     *auditlog.Logger
	Enrollment   *enrollment.Service
	Expiry       *workers.SubscriptionExpiry // nil when disabled
	PayLimiter   *ratelimit.Limiter
	LoginLimiter *ratelimit.LoginLimiter
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n), zap.Any("timeouts", timeouts.Current()))
	}

	svc := deps.Services
	db := deps.MongoDatabase

	if deps.Redis != nil {
		svc.RedisLocker = keylock.NewRedisLocker(deps.Redis, "coursehub:lock:", logger)
		svc.Locker = svc.RedisLocker
	} else {
		svc.Locker = keylock.NewMemoryLocker()
	}
	logger.Info("keyed locks ready", zap.String("backend", appCfg.LockBackend))

	svc.Metrics = metrics.New("coursehub")
	svc.AuditLog = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Payments: appCfg.AuditLogPayments,
		Admin:    appCfg.AuditLogAdmin,
	})

	subs := subscriptionstore.New(db)
	svc.Enrollment = enrollment.NewService(enrollment.Deps{
		Ledger:   balancestore.New(db),
		Registry: subs,
		Groups:   groupstore.New(db),
		Catalog:  coursestore.New(db),
		Tx:       txn.NewRunner(db, logger),
		Locker:   svc.Locker,
		Auditor:  svc.AuditLog,
		Metrics:  svc.Metrics,
		Log:      logger,
	}, enrollment.Config{
		MinGroups:          appCfg.PlacementMinGroups,
		GroupCapacity:      appCfg.PlacementGroupCapacity,
		SubscriptionLength: appCfg.SubscriptionLength,
		LockTTL:            appCfg.LockTTL,
	})

	svc.PayLimiter = ratelimit.New(appCfg.PayRateLimit, appCfg.PayRateBurst)
	svc.LoginLimiter = ratelimit.NewLoginLimiter(appCfg.LoginRateLimit, appCfg.LoginRateBurst)

	if appCfg.ExpirySweepInterval > 0 {
		svc.Expiry = workers.NewSubscriptionExpiry(subs, svc.AuditLog, svc.Metrics, logger, appCfg.ExpirySweepInterval)
		svc.Expiry.Start()
	} else {
		logger.Info("subscription expiry worker disabled")
	}

	return nil
}
