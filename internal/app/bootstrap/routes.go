// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	balancesfeature "github.com/dalemusser/coursehub/internal/app/features/balances"
	coursesfeature "github.com/dalemusser/coursehub/internal/app/features/courses"
	errorsfeature "github.com/dalemusser/coursehub/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/coursehub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/coursehub/internal/app/features/health"
	lessonsfeature "github.com/dalemusser/coursehub/internal/app/features/lessons"
	loginfeature "github.com/dalemusser/coursehub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/coursehub/internal/app/features/logout"
	paymentsfeature "github.com/dalemusser/coursehub/internal/app/features/payments"
	subscriptionsfeature "github.com/dalemusser/coursehub/internal/app/features/subscriptions"
	usersfeature "github.com/dalemusser/coursehub/internal/app/features/users"
	userstore "github.com/dalemusser/coursehub/internal/app/store/users"
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is populated.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fetch the user on each request so role changes and disabled accounts
	// take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	var locks healthfeature.Pinger
	if svc.RedisLocker != nil {
		locks = svc.RedisLocker
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, locks, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if appCfg.MetricsEnabled {
		r.Handle("/metrics", svc.Metrics.Handler())
	}

	// Authentication
	loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, svc.AuditLog, svc.LoginLimiter, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.AuditLog, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Catalog, with lessons, groups and pay under /courses/{id}
	coursesHandler := coursesfeature.NewHandler(db, svc.Locker, errLog, svc.AuditLog, logger)
	lessonsHandler := lessonsfeature.NewHandler(db, errLog, svc.AuditLog, logger)
	groupsHandler := groupsfeature.NewHandler(db, svc.Locker, errLog, svc.AuditLog, svc.Metrics, logger)
	paymentsHandler := paymentsfeature.NewHandler(svc.Enrollment, svc.PayLimiter, errLog, svc.AuditLog, logger)
	r.Mount("/courses", coursesfeature.Routes(coursesHandler, sessionMgr,
		lessonsfeature.Mount(lessonsHandler, sessionMgr),
		groupsfeature.Mount(groupsHandler, sessionMgr),
		paymentsfeature.Mount(paymentsHandler, sessionMgr),
	))

	// Balances and subscriptions of the signed-in user
	balancesHandler := balancesfeature.NewHandler(db, errLog, svc.AuditLog, logger)
	r.Mount("/balance", balancesfeature.Routes(balancesHandler, sessionMgr))

	subsHandler := subscriptionsfeature.NewHandler(db, errLog, svc.AuditLog, logger)
	r.Mount("/subscriptions", subscriptionsfeature.Routes(subsHandler, sessionMgr))

	// User administration
	usersHandler := usersfeature.NewHandler(db, errLog, svc.AuditLog, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr, balancesfeature.MountCredit(balancesHandler)))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errLog.NotFound(w, "Not found.")
	})

	return r, nil
}
