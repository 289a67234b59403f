// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration; ports, TLS, logging and
// CORS live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: coursehub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Keyed locks serialising pay requests and group placement
	LockBackend   string // "memory" (single process) or "redis" (shared)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration // longest a crashed holder can keep a lock

	// Enrollment policy
	PlacementMinGroups     int           // standing groups per course
	PlacementGroupCapacity int           // members per group before it is full
	SubscriptionLength     time.Duration // end_date = start_date + length

	// Background work
	ExpirySweepInterval time.Duration // 0 disables the expiry worker

	// Rate limits (requests per second and burst)
	PayRateLimit   float64
	PayRateBurst   int
	LoginRateLimit float64
	LoginRateBurst int

	// Audit destinations: all | db | log | off
	AuditLogAuth     string
	AuditLogPayments string
	AuditLogAdmin    string

	MetricsEnabled bool // expose /metrics
}
