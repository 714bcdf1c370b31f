package store

const (
	constraintOpenByAsset = "rentals_open_by_asset_idx"
	constraintOpenByUser  = "rentals_open_by_user_idx"
)

// Schema is the postgres DDL. The two partial unique indexes back the
// one-open-rental-per-asset and one-open-rental-per-user rules at commit time.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	daily_rate  NUMERIC(12,2) NOT NULL CHECK (daily_rate >= 0),
	fine_amount NUMERIC(12,2) NOT NULL CHECK (fine_amount >= 0),
	available   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	driver_license TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rentals (
	id                   UUID PRIMARY KEY,
	asset_id             UUID NOT NULL REFERENCES assets(id),
	user_id              UUID NOT NULL REFERENCES users(id),
	start_date           TIMESTAMPTZ NOT NULL,
	expected_return_date TIMESTAMPTZ NOT NULL,
	end_date             TIMESTAMPTZ,
	total                NUMERIC(12,2),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintOpenByAsset + ` ON rentals (asset_id) WHERE end_date IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintOpenByUser + ` ON rentals (user_id) WHERE end_date IS NULL;
CREATE INDEX IF NOT EXISTS rentals_user_start_idx ON rentals (user_id, start_date DESC);
`
