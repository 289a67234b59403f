// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for CourseHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: COURSEHUB_MONGO_URI, COURSEHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "coursehub", Desc: "MongoDB database name"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "coursehub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Keyed locks
	{Name: "lock_backend", Default: LockBackendMemory, Desc: "Keyed lock backend: 'memory' or 'redis'"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address for keyed locks"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "lock_ttl", Default: "30s", Desc: "Maximum hold time of a keyed lock"},

	// Enrollment policy
	{Name: "placement_min_groups", Default: 10, Desc: "Standing groups per course"},
	{Name: "placement_group_capacity", Default: 30, Desc: "Members per group"},
	{Name: "subscription_length", Default: "8760h", Desc: "Subscription length (end_date = start + length)"},
	{Name: "expiry_sweep_interval", Default: "10m", Desc: "Subscription expiry sweep period (0 disables)"},

	// Rate limits
	{Name: "pay_rate_limit", Default: "2", Desc: "Per-user pay requests per second (0 disables)"},
	{Name: "pay_rate_burst", Default: 4, Desc: "Per-user pay burst"},
	{Name: "login_rate_limit", Default: "1", Desc: "Per-IP login attempts per second (0 disables)"},
	{Name: "login_rate_burst", Default: 5, Desc: "Per-IP login burst"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_payments", Default: "all", Desc: "Payment event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// COURSEHUB_* environment variables and command-line flags with
// precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COURSEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		LockBackend:   appValues.String("lock_backend"),
		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		LockTTL:       appValues.Duration("lock_ttl", 30*time.Second),

		PlacementMinGroups:     appValues.Int("placement_min_groups"),
		PlacementGroupCapacity: appValues.Int("placement_group_capacity"),
		SubscriptionLength:     appValues.Duration("subscription_length", 365*24*time.Hour),
		ExpirySweepInterval:    appValues.Duration("expiry_sweep_interval", 10*time.Minute),

		PayRateBurst:   appValues.Int("pay_rate_burst"),
		LoginRateBurst: appValues.Int("login_rate_burst"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogPayments: appValues.String("audit_log_payments"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	if appCfg.PayRateLimit, err = parseRate("pay_rate_limit", appValues.String("pay_rate_limit")); err != nil {
		return nil, AppConfig{}, err
	}
	if appCfg.LoginRateLimit, err = parseRate("login_rate_limit", appValues.String("login_rate_limit")); err != nil {
		return nil, AppConfig{}, err
	}

	return coreCfg, appCfg, nil
}

func parseRate(key, v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails before the first
// connection attempt.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	var errs []error

	if env == "prod" && appCfg.SessionKey == devSessionKey {
		errs = append(errs, errors.New("session_key must be changed in production"))
	}
	if len(appCfg.SessionKey) < 32 {
		errs = append(errs, errors.New("session_key must be at least 32 characters"))
	}

	switch appCfg.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if appCfg.RedisAddr == "" {
			errs = append(errs, errors.New("lock_backend 'redis' requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock_backend must be 'memory' or 'redis', got %q", appCfg.LockBackend))
	}
	if appCfg.LockTTL <= 0 {
		errs = append(errs, errors.New("lock_ttl must be positive"))
	}

	if appCfg.PlacementMinGroups < 1 {
		errs = append(errs, errors.New("placement_min_groups must be at least 1"))
	}
	if appCfg.PlacementGroupCapacity < 1 {
		errs = append(errs, errors.New("placement_group_capacity must be at least 1"))
	}
	if appCfg.SubscriptionLength <= 0 {
		errs = append(errs, errors.New("subscription_length must be positive"))
	}
	if appCfg.ExpirySweepInterval < 0 {
		errs = append(errs, errors.New("expiry_sweep_interval must not be negative"))
	}
	if appCfg.PayRateLimit < 0 || appCfg.LoginRateLimit < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}

	for key, v := range map[string]string{
		"audit_log_auth":     appCfg.AuditLogAuth,
		"audit_log_payments": appCfg.AuditLogPayments,
		"audit_log_admin":    appCfg.AuditLogAdmin,
	} {
		switch v {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			errs = append(errs, fmt.Errorf("%s must be one of all|db|log|off, got %q", key, v))
		}
	}

	return errors.Join(errs...)
}
