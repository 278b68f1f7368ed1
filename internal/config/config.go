package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"

    "github.com/joho/godotenv" // optional .env file for local runs
)

// Lock backends accepted in LOCK_BACKEND.
const (
    LockBackendMemory = "memory"
    LockBackendRedis  = "redis"
)

// Audit sinks accepted in AUDIT_SINK.
const (
    AuditSinkFile  = "file"
    AuditSinkMongo = "mongo"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    DBUser       string // database username
    DBPass       string // database password (optional)
    DBHost       string // database host address
    DBPort       string // database port number
    DBName       string // database name
    JWTSecret    string // secret used to sign JWTs (HS512)
    AccessTTLMin int    // access token time-to-live in minutes
    BcryptCost   int    // bcrypt cost for password hashing

    LockBackend string        // memory | redis
    LockTTL     time.Duration // lease of a redis account lock

    RabbitURL      string // empty disables operation events
    AuditSink      string // file | mongo
    AuditFile      string // path used by the file sink
    MongoURI       string
    MongoDB        string
    MongoAuditColl string

    BootstrapAdminUser string // created with role ADMIN at startup when set
    BootstrapAdminPass string
}

// Load reads an optional .env file and then the environment.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("config: ignoring .env: %v", err)
    }
    return Config{
        Env:          must("APP_ENV"),
        Port:         must("APP_PORT"),
        DBUser:       must("DB_USER"),
        DBPass:       os.Getenv("DB_PASS"), // empty allowed
        DBHost:       must("DB_HOST"),
        DBPort:       must("DB_PORT"),
        DBName:       must("DB_NAME"),
        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 5),
        BcryptCost:   envInt("BCRYPT_COST", 10),

        LockBackend: envStr("LOCK_BACKEND", LockBackendMemory),
        LockTTL:     envDur("LOCK_TTL", 10*time.Second),

        RabbitURL:      os.Getenv("RABBITMQ_URL"),
        AuditSink:      envStr("AUDIT_SINK", AuditSinkFile),
        AuditFile:      envStr("AUDIT_FILE", "logs/operations.log"),
        MongoURI:       envStr("MONGO_URI", "mongodb://localhost:27017"),
        MongoDB:        envStr("MONGO_DB", "ebank"),
        MongoAuditColl: envStr("MONGO_AUDIT_COLLECTION", "operation_audit"),

        BootstrapAdminUser: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
        BootstrapAdminPass: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
    }
}

// AccessTTL is AccessTTLMin as a duration.
func (c Config) AccessTTL() time.Duration {
    return time.Duration(c.AccessTTLMin) * time.Minute
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
