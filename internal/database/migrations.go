package database

import (
    "context"
    "database/sql"
)

// migrations are applied in order at startup.  Statements are
// idempotent so restarting the server against an existing schema is a
// no-op.
var migrations = []string{
    `CREATE TABLE IF NOT EXISTS showtimes (
        id                   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        title                VARCHAR(255)    NOT NULL,
        starts_at            DATETIME        NOT NULL,
        ends_at              DATETIME        NOT NULL,
        price_standard_cents INT UNSIGNED    NOT NULL,
        price_premium_cents  INT UNSIGNED    NOT NULL,
        has_active_holds     TINYINT(1)      NOT NULL DEFAULT 0,
        created_at           DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        KEY idx_showtimes_starts_at (starts_at),
        KEY idx_showtimes_active_holds (has_active_holds)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

    `CREATE TABLE IF NOT EXISTS showtime_seats (
        id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        showtime_id     BIGINT UNSIGNED NOT NULL,
        seat_name       VARCHAR(8)      NOT NULL,
        category        VARCHAR(16)     NOT NULL DEFAULT 'STANDARD',
        status          VARCHAR(16)     NOT NULL DEFAULT 'AVAILABLE',
        holder_id       BIGINT UNSIGNED NULL,
        hold_expires_at DATETIME(6)     NULL,
        PRIMARY KEY (id),
        UNIQUE KEY uq_showtime_seat (showtime_id, seat_name),
        KEY idx_seats_hold_expiry (status, hold_expires_at),
        CONSTRAINT fk_seats_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

    `CREATE TABLE IF NOT EXISTS bookings (
        id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        customer_id        BIGINT UNSIGNED NOT NULL,
        showtime_id        BIGINT UNSIGNED NOT NULL,
        total_amount_cents INT UNSIGNED    NOT NULL,
        payment_state      VARCHAR(16)     NOT NULL DEFAULT 'PENDING',
        booking_state      VARCHAR(16)     NOT NULL DEFAULT 'PENDING',
        payment_ref        VARCHAR(64)     NULL,
        provider_txn_id    VARCHAR(128)    NULL,
        created_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_bookings_payment_ref (payment_ref),
        KEY idx_bookings_customer (customer_id),
        CONSTRAINT fk_bookings_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

    `CREATE TABLE IF NOT EXISTS booking_seats (
        id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        booking_id  BIGINT UNSIGNED NOT NULL,
        showtime_id BIGINT UNSIGNED NOT NULL,
        seat_name   VARCHAR(8)      NOT NULL,
        price_cents INT UNSIGNED    NOT NULL,
        PRIMARY KEY (id),
        KEY idx_booking_seats_booking (booking_id),
        CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
    for _, stmt := range migrations {
        if _, err := db.ExecContext(ctx, stmt); err != nil {
            return err
        }
    }
    return nil
}
