package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order. Every statement is idempotent.
//
// Cascades: deleting a customer deletes its bank accounts, and deleting an
// account deletes its operations. bank_accounts.version backs optimistic
// concurrency for balance writes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id            BIGINT AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(120) NOT NULL,
		email         VARCHAR(190) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_customers_email (email),
		KEY idx_customers_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bank_accounts (
		id            VARCHAR(36)    NOT NULL PRIMARY KEY,
		type          CHAR(2)        NOT NULL,
		balance       DECIMAL(19,2)  NOT NULL DEFAULT 0,
		status        VARCHAR(16)    NOT NULL,
		created_at    DATETIME(6)    NOT NULL,
		customer_id   BIGINT         NULL,
		overdraft     DECIMAL(19,2)  NULL,
		interest_rate DECIMAL(9,4)   NULL,
		version       BIGINT         NOT NULL DEFAULT 0,
		KEY idx_bank_accounts_customer (customer_id),
		CONSTRAINT fk_bank_accounts_customer FOREIGN KEY (customer_id)
			REFERENCES customers (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS account_operations (
		id              BIGINT AUTO_INCREMENT PRIMARY KEY,
		operation_date  DATETIME(6)   NOT NULL,
		amount          DECIMAL(19,2) NOT NULL,
		type            VARCHAR(8)    NOT NULL,
		description     VARCHAR(255)  NULL,
		bank_account_id VARCHAR(36)   NOT NULL,
		KEY idx_operations_account (bank_account_id, id),
		CONSTRAINT fk_operations_account FOREIGN KEY (bank_account_id)
			REFERENCES bank_accounts (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS identities (
		id            BIGINT AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(190) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_identities_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS roles (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		role_name   VARCHAR(64)  NOT NULL,
		description VARCHAR(255) NULL,
		UNIQUE KEY uq_roles_name (role_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS identity_roles (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		identity_id BIGINT NOT NULL,
		role_id     BIGINT NOT NULL,
		UNIQUE KEY uq_identity_roles (identity_id, role_id),
		CONSTRAINT fk_identity_roles_identity FOREIGN KEY (identity_id)
			REFERENCES identities (id) ON DELETE CASCADE,
		CONSTRAINT fk_identity_roles_role FOREIGN KEY (role_id)
			REFERENCES roles (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
