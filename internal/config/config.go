package config // package config loads application configuration from environment variables

import (
    "log"  // log is used to report configuration errors and halt execution
    "os"   // os provides access to environment variables
    "time" // time parses duration-typed settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// timers, ints for money-adjacent knobs.
type Config struct {
    Env             string        // application environment (e.g. "dev", "prod")
    Port            string        // HTTP port to listen on
    DBUser          string        // database username
    DBPass          string        // database password (optional)
    DBHost          string        // database host address
    DBPort          string        // database port number
    DBName          string        // database name
    JWTSecret       string        // secret used to verify JWTs
    HoldTTL         time.Duration // how long a seat hold lives before expiring
    SweepInterval   time.Duration // how often the expired-hold sweeper runs
    CancelCutoff    time.Duration // bookings cannot be cancelled closer to showtime than this
    Currency        string        // ISO currency code charged by the gateway
    PaymentBaseURL  string        // payment gateway API base URL
    PaymentMerchant string        // merchant id registered with the gateway
    PaymentSecret   string        // shared secret used to sign gateway requests
    PaymentReturn   string        // URL the gateway redirects customers back to
    RabbitURL       string        // RabbitMQ connection URL (empty disables events)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Timer knobs have
// sensible defaults so a dev setup only needs the database and gateway
// settings.
func Load() Config {
    return Config{
        Env:             must("APP_ENV"),      // environment (dev/test/prod)
        Port:            must("APP_PORT"),     // port to bind the HTTP server
        DBUser:          must("DB_USER"),      // database user
        DBPass:          os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:          must("DB_HOST"),      // database host
        DBPort:          must("DB_PORT"),      // database port
        DBName:          must("DB_NAME"),      // database name
        JWTSecret:       must("JWT_SECRET"),   // secret used to verify JWTs
        HoldTTL:         envDur("HOLD_TTL", 7*time.Minute),
        SweepInterval:   envDur("SWEEP_INTERVAL", 30*time.Second),
        CancelCutoff:    envDur("CANCEL_CUTOFF", time.Hour),
        Currency:        envStr("CURRENCY", "USD"),
        PaymentBaseURL:  must("PAYMENT_BASE_URL"),
        PaymentMerchant: must("PAYMENT_MERCHANT_ID"),
        PaymentSecret:   must("PAYMENT_SECRET"),
        PaymentReturn:   must("PAYMENT_RETURN_URL"),
        RabbitURL:       envStr("RABBITMQ_URL", ""),
    }
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
