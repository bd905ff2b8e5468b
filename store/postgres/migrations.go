package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the loyalty store.
var Migrations = migrate.NewGroup("loyalty")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_loyalty_customers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_customers (
    id                       TEXT PRIMARY KEY,
    phone                    TEXT NOT NULL DEFAULT '',
    email                    TEXT NOT NULL DEFAULT '',
    first_name               TEXT NOT NULL DEFAULT '',
    last_name                TEXT NOT NULL DEFAULT '',
    birth_date               TIMESTAMPTZ,
    status                   TEXT NOT NULL DEFAULT 'active',
    registered_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_visit               TIMESTAMPTZ,
    total_purchases_cents    BIGINT NOT NULL DEFAULT 0,
    total_purchases_currency TEXT NOT NULL DEFAULT '',
    total_visits             INT NOT NULL DEFAULT 0,
    preferred_store          TEXT NOT NULL DEFAULT '',
    segments                 JSONB NOT NULL DEFAULT '[]',
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_loyalty_customers_phone ON loyalty_customers (phone);
CREATE INDEX IF NOT EXISTS idx_loyalty_customers_status ON loyalty_customers (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_customers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_customer_changes",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_customer_changes (
    id          TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL DEFAULT '',
    changed_by  TEXT NOT NULL DEFAULT '',
    field       TEXT NOT NULL DEFAULT '',
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    changed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loyalty_changes_customer ON loyalty_customer_changes (customer_id, changed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_customer_changes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_balances",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_balances (
    id                 TEXT PRIMARY KEY,
    customer_id        TEXT NOT NULL DEFAULT '',
    currency           TEXT NOT NULL DEFAULT '',
    current_cents      BIGINT NOT NULL DEFAULT 0,
    total_earned_cents BIGINT NOT NULL DEFAULT 0,
    total_spent_cents  BIGINT NOT NULL DEFAULT 0,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT chk_loyalty_balances_non_negative CHECK (current_cents >= 0),
    CONSTRAINT chk_loyalty_balances_consistent CHECK (current_cents = total_earned_cents - total_spent_cents)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_loyalty_balances_customer ON loyalty_balances (customer_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_bonus_transactions",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_bonus_transactions (
    id                   TEXT PRIMARY KEY,
    balance_id           TEXT NOT NULL DEFAULT '',
    customer_id          TEXT NOT NULL DEFAULT '',
    type                 TEXT NOT NULL DEFAULT '',
    currency             TEXT NOT NULL DEFAULT '',
    amount_cents         BIGINT NOT NULL DEFAULT 0,
    balance_before_cents BIGINT NOT NULL DEFAULT 0,
    balance_after_cents  BIGINT NOT NULL DEFAULT 0,
    purchase_id          TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    occurred_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loyalty_bonus_tx_customer ON loyalty_bonus_transactions (customer_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_loyalty_bonus_tx_purchase ON loyalty_bonus_transactions (purchase_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_bonus_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_discount_rules",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_discount_rules (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL DEFAULT '',
    description           TEXT NOT NULL DEFAULT '',
    type                  TEXT NOT NULL DEFAULT '',
    percent_bp            BIGINT NOT NULL DEFAULT 0,
    amount_cents          BIGINT NOT NULL DEFAULT 0,
    amount_currency       TEXT NOT NULL DEFAULT '',
    status                TEXT NOT NULL DEFAULT 'active',
    min_purchase_cents    BIGINT NOT NULL DEFAULT 0,
    min_purchase_currency TEXT NOT NULL DEFAULT '',
    max_discount_cents    BIGINT NOT NULL DEFAULT 0,
    max_discount_currency TEXT NOT NULL DEFAULT '',
    stores                JSONB NOT NULL DEFAULT '[]',
    segments              JSONB NOT NULL DEFAULT '[]',
    new_customer_only     BOOLEAN NOT NULL DEFAULT FALSE,
    min_visits_required   INT NOT NULL DEFAULT 0,
    max_uses_per_customer INT NOT NULL DEFAULT 0,
    max_total_uses        INT NOT NULL DEFAULT 0,
    current_uses          INT NOT NULL DEFAULT 0,
    valid_from            TIMESTAMPTZ,
    valid_until           TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loyalty_rules_status ON loyalty_discount_rules (status);
CREATE INDEX IF NOT EXISTS idx_loyalty_rules_validity ON loyalty_discount_rules (status, valid_from, valid_until);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_discount_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_discount_applications",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_discount_applications (
    id             TEXT PRIMARY KEY,
    rule_id        TEXT NOT NULL DEFAULT '',
    purchase_id    TEXT NOT NULL DEFAULT '',
    customer_id    TEXT NOT NULL DEFAULT '',
    currency       TEXT NOT NULL DEFAULT '',
    original_cents BIGINT NOT NULL DEFAULT 0,
    discount_cents BIGINT NOT NULL DEFAULT 0,
    final_cents    BIGINT NOT NULL DEFAULT 0,
    applied_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loyalty_apps_rule_customer ON loyalty_discount_applications (rule_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_loyalty_apps_purchase ON loyalty_discount_applications (purchase_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_discount_applications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_purchases",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_purchases (
    id                     TEXT PRIMARY KEY,
    customer_id            TEXT NOT NULL DEFAULT '',
    store_id               TEXT NOT NULL DEFAULT '',
    purchased_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    currency               TEXT NOT NULL DEFAULT '',
    original_amount_cents  BIGINT NOT NULL DEFAULT 0,
    amount_cents           BIGINT NOT NULL DEFAULT 0,
    items_count            INT NOT NULL DEFAULT 0,
    discount_applied_cents BIGINT NOT NULL DEFAULT 0,
    bonuses_used_cents     BIGINT NOT NULL DEFAULT 0,
    bonuses_earned_cents   BIGINT NOT NULL DEFAULT 0,
    payment_method         TEXT NOT NULL DEFAULT '',
    receipt_number         TEXT NOT NULL DEFAULT '',
    cashier_id             TEXT NOT NULL DEFAULT '',
    notes                  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_loyalty_purchases_customer ON loyalty_purchases (customer_id, purchased_at);
CREATE INDEX IF NOT EXISTS idx_loyalty_purchases_store ON loyalty_purchases (store_id, purchased_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_loyalty_purchases_receipt ON loyalty_purchases (receipt_number) WHERE receipt_number != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_purchases`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_notifications",
			Version: "20240101000008",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_notifications (
    id          TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL DEFAULT '',
    channel     TEXT NOT NULL DEFAULT '',
    subject     TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'pending',
    error       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_loyalty_notifications_customer ON loyalty_notifications (customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_loyalty_notifications_status ON loyalty_notifications (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_notifications`)
				return err
			},
		},
	)
}
