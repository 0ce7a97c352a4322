package db

import (
	"context"
	"fmt"
)

const usersMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    email_verified boolean NOT NULL DEFAULT false,
    name text NOT NULL DEFAULT '',
    picture text NOT NULL DEFAULT '',
    oauth_type text NOT NULL DEFAULT '',
    provider_user_id text NOT NULL DEFAULT '',
    coin bigint NOT NULL DEFAULT 0,
    highest_coin bigint NOT NULL DEFAULT 0,
    last_ip text NOT NULL DEFAULT '',
    country text NOT NULL DEFAULT '',
    ads_id text NOT NULL DEFAULT '',
    is_deleted boolean NOT NULL DEFAULT false,
    last_login_at timestamptz,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_live_unique
ON users (LOWER(email))
WHERE is_deleted = false;

CREATE TABLE IF NOT EXISTS identities (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    provider text NOT NULL,
    provider_user_id text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT identities_provider_unique
        UNIQUE (provider, provider_user_id)
);

CREATE INDEX IF NOT EXISTS identities_user_id_idx
ON identities (user_id);
`

// Migrate creates the users and identities schema. It is idempotent.
// users.oauth_type only records the last login provider; provider links
// live in identities.
func Migrate(ctx context.Context, d *DB) error {
	if _, err := d.ExecContext(ctx, usersMigration); err != nil {
		return fmt.Errorf("failed to migrate users schema: %w", err)
	}
	return nil
}
