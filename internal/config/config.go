// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/labstack/gommon/log"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (dev, test, prod)
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// ApprovalMode is best_effort or strict; see service.ParseApprovalMode.
	ApprovalMode string

	Queue QueueConfig // RabbitMQ publisher and audit consumer settings
	Jobs  JobConfig   // background job schedule
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must() and a missing value stops the process.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),                                // environment (dev/test/prod)
		Port:           must("APP_PORT"),                               // port to bind the HTTP server
		DBUser:         must("DB_USER"),                                // database user
		DBPass:         os.Getenv("DB_PASS"),                           // database password (empty allowed)
		DBHost:         must("DB_HOST"),                                // database host
		DBPort:         must("DB_PORT"),                                // database port
		DBName:         must("DB_NAME"),                                // database name
		JWTSecret:      must("JWT_SECRET"),                             // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),                // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),              // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),                         // bcrypt cost factor
		ApprovalMode:   envStr("PAYMENT_APPROVAL_MODE", "best_effort"), // payment approval policy
		Queue:          LoadQueueConfig(),                              // RABBITMQ_* variables
		Jobs:           LoadJobConfig(),                                // JOB_* variables
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	// Atoi rejects anything but a plain base-10 integer.
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
