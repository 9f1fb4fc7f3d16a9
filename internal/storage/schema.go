package storage

const schema = `
-- The 'sources' table tracks where synced cards came from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);

-- The 'cards' table stores one Romanian / English pairing per row.
-- romanian_key is the fingerprint of the normalized Romanian text used for duplicate suppression.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    english TEXT NOT NULL,
    romanian TEXT NOT NULL,
    romanian_key TEXT NOT NULL,
    source_id INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_romanian_key ON cards(romanian_key);
CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards(created_at);

-- Tags form an ordered set per card; position keeps insertion order.
CREATE TABLE IF NOT EXISTS card_tags (
    card_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    position INTEGER NOT NULL,

    PRIMARY KEY(card_id, tag),
    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_card_tags_tag ON card_tags(tag);
`
