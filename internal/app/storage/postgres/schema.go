package postgres

// schema is applied on Open. Statements are idempotent so repeated startups
// are safe.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	address        TEXT PRIMARY KEY,
	username       TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL UNIQUE,
	profile_hash   TEXT NOT NULL DEFAULT '',
	verified       BOOLEAN NOT NULL DEFAULT FALSE,
	is_freelancer  BOOLEAN NOT NULL DEFAULT FALSE,
	is_client      BOOLEAN NOT NULL DEFAULT FALSE,
	registered_at  TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_verifications (
	address      TEXT PRIMARY KEY REFERENCES profiles(address),
	method       TEXT NOT NULL,
	verifier     TEXT NOT NULL,
	verified_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id               BIGSERIAL PRIMARY KEY,
	client           TEXT NOT NULL,
	freelancer       TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	requirements     TEXT NOT NULL DEFAULT '',
	budget           BIGINT NOT NULL,
	deadline         TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	deliverables     TEXT NOT NULL DEFAULT '',
	milestone_count  INTEGER NOT NULL DEFAULT 0,
	escrow_funded    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client);
CREATE INDEX IF NOT EXISTS idx_projects_freelancer ON projects(freelancer);

CREATE TABLE IF NOT EXISTS milestones (
	project_id    BIGINT NOT NULL REFERENCES projects(id),
	idx           INTEGER NOT NULL,
	description   TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	completed     BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at  TIMESTAMPTZ,
	deliverable   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, idx)
);

CREATE TABLE IF NOT EXISTS wallets (
	owner          TEXT PRIMARY KEY,
	address        TEXT NOT NULL,
	registered_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	id           BIGSERIAL PRIMARY KEY,
	project_id   BIGINT NOT NULL UNIQUE REFERENCES projects(id),
	client       TEXT NOT NULL,
	freelancer   TEXT NOT NULL,
	token        TEXT NOT NULL,
	amount       BIGINT NOT NULL,
	status       TEXT NOT NULL,
	work_hash    TEXT NOT NULL DEFAULT '',
	funded_at    TIMESTAMPTZ,
	released_at  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client);

CREATE TABLE IF NOT EXISTS verifications (
	id              BIGSERIAL PRIMARY KEY,
	project_id      BIGINT NOT NULL UNIQUE REFERENCES projects(id),
	freelancer      TEXT NOT NULL,
	client          TEXT NOT NULL,
	verifier        TEXT NOT NULL DEFAULT '',
	work_hash       TEXT NOT NULL DEFAULT '',
	requirements    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	meets_deadline  BOOLEAN NOT NULL DEFAULT FALSE,
	reason          TEXT NOT NULL DEFAULT '',
	deadline        TIMESTAMPTZ NOT NULL,
	submitted_at    TIMESTAMPTZ,
	resolved_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS evidence (
	verification_id  BIGINT NOT NULL REFERENCES verifications(id),
	hash             TEXT NOT NULL,
	submitter        TEXT NOT NULL,
	submitted_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_verification ON evidence(verification_id);

CREATE TABLE IF NOT EXISTS freelancer_stats (
	freelancer          TEXT PRIMARY KEY,
	total_projects      BIGINT NOT NULL DEFAULT 0,
	completed_projects  BIGINT NOT NULL DEFAULT 0,
	total_earned        BIGINT NOT NULL DEFAULT 0,
	total_deliveries    BIGINT NOT NULL DEFAULT 0,
	on_time_deliveries  BIGINT NOT NULL DEFAULT 0,
	average_rating      BIGINT NOT NULL DEFAULT 0,
	registered_at       TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS work_records (
	project_id   BIGINT PRIMARY KEY,
	freelancer   TEXT NOT NULL,
	client       TEXT NOT NULL,
	amount       BIGINT NOT NULL,
	work_hash    TEXT NOT NULL DEFAULT '',
	rating       INTEGER NOT NULL,
	verified     BOOLEAN NOT NULL DEFAULT FALSE,
	on_time      BOOLEAN NOT NULL DEFAULT FALSE,
	recorded_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_work_records_freelancer ON work_records(freelancer);

CREATE TABLE IF NOT EXISTS chain_contracts (
	chain_id       BIGINT PRIMARY KEY,
	address        TEXT NOT NULL,
	registered_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
	message_id      TEXT PRIMARY KEY,
	op_type         TEXT NOT NULL,
	source_chain    BIGINT NOT NULL,
	dest_chain      BIGINT NOT NULL,
	source_address  TEXT NOT NULL DEFAULT '',
	dest_address    TEXT NOT NULL DEFAULT '',
	payload         BYTEA,
	status          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);

CREATE TABLE IF NOT EXISTS project_links (
	project_id      BIGINT PRIMARY KEY REFERENCES projects(id),
	correlation_id  TEXT NOT NULL UNIQUE,
	source_chain    BIGINT NOT NULL,
	creator         TEXT NOT NULL DEFAULT '',
	remote          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_links (
	payment_id      BIGINT PRIMARY KEY REFERENCES payments(id),
	correlation_id  TEXT NOT NULL UNIQUE,
	source_chain    BIGINT NOT NULL,
	released        BOOLEAN NOT NULL DEFAULT FALSE,
	remote          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);
`
