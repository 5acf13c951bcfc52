package database

// Schema defines all tables. Deleting an account cascades through
// portfolios, holdings, share lots, identifier mappings and builder
// states. Market prices are shared across accounts and cleaned up
// separately when the last referencing holding disappears.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    cash_balance REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS portfolios (
    id INTEGER PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    UNIQUE(account_id, name)
);

CREATE TABLE IF NOT EXISTS holdings (
    id INTEGER PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    identifier TEXT,
    category TEXT,
    investment_type TEXT,
    total_invested REAL NOT NULL DEFAULT 0,
    is_custom_value INTEGER NOT NULL DEFAULT 0,
    custom_total_value REAL,
    custom_price REAL,
    identifier_manually_edited INTEGER NOT NULL DEFAULT 0,
    override_identifier TEXT,
    country_manually_edited INTEGER NOT NULL DEFAULT 0,
    override_country TEXT
);

CREATE INDEX IF NOT EXISTS idx_holdings_account ON holdings(account_id);
CREATE INDEX IF NOT EXISTS idx_holdings_identifier ON holdings(identifier);

CREATE TABLE IF NOT EXISTS share_lots (
    holding_id INTEGER PRIMARY KEY REFERENCES holdings(id) ON DELETE CASCADE,
    shares REAL NOT NULL DEFAULT 0,
    override_shares REAL,
    is_manually_edited INTEGER NOT NULL DEFAULT 0,
    manual_edit_date TEXT,
    csv_modified_after_edit INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS market_prices (
    identifier TEXT PRIMARY KEY,
    price REAL NOT NULL,
    currency TEXT NOT NULL,
    price_in_base_currency REAL NOT NULL,
    country TEXT,
    last_updated TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS identifier_mappings (
    id INTEGER PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    csv_identifier TEXT NOT NULL,
    preferred_identifier TEXT NOT NULL,
    company_name TEXT,
    UNIQUE(account_id, csv_identifier)
);

CREATE TABLE IF NOT EXISTS exchange_rates (
    from_currency TEXT NOT NULL,
    to_currency TEXT NOT NULL,
    rate REAL NOT NULL,
    last_updated TEXT NOT NULL,
    PRIMARY KEY(from_currency, to_currency)
);

CREATE TABLE IF NOT EXISTS builder_states (
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    page TEXT NOT NULL,
    state_json TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY(account_id, page)
);

CREATE TABLE IF NOT EXISTS import_runs (
    id TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    status TEXT NOT NULL,
    percent INTEGER NOT NULL DEFAULT 0,
    message TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);
`
