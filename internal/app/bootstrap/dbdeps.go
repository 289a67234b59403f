// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil unless lock_backend is "redis".
	Redis *redis.Client

	// Services is filled in by Startup. Hooks receive DBDeps by value, so
	// the pointer is what BuildHandler and Shutdown share with Startup.
	Services *Services
}
