package store

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	provider_order_id TEXT UNIQUE NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	release_id TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT 'digital',
	amount_cents INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_provider ON orders(provider_order_id);

CREATE TABLE IF NOT EXISTS purchases (
	user_id TEXT NOT NULL,
	release_id TEXT NOT NULL,
	granted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, release_id)
);
`
