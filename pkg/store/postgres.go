package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres implements Store on PostgreSQL. Fuzzy candidate lookup uses an
// array-overlap query against a GIN index; the uniqueness invariants live in
// the schema (exact_hash UNIQUE, fingerprint_id PRIMARY KEY on associations).
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects, verifies the connection and runs pending migrations.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) GetByExactHash(ctx context.Context, hash string) (*FingerprintRecord, error) {
	const query = `
	SELECT fingerprint_id, exact_hash, fuzzy_hashes, components, COALESCE(user_id, ''), session_ids, created_at, last_seen_at
	FROM fingerprints
	WHERE exact_hash = $1`

	var rec FingerprintRecord
	var components []byte
	err := p.db.QueryRowContext(ctx, query, hash).Scan(
		&rec.FingerprintID, &rec.ExactHash, pq.Array(&rec.FuzzyHashes), &components,
		&rec.UserID, pq.Array(&rec.SessionIDs), &rec.CreatedAt, &rec.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get by exact hash", err)
	}
	if err := json.Unmarshal(components, &rec.Components); err != nil {
		return nil, unavailable("decode components", err)
	}
	return &rec, nil
}

func (p *Postgres) FindByFuzzyHashes(ctx context.Context, hashes []string) ([]FingerprintRecord, error) {
	lookup := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h != "" {
			lookup = append(lookup, h)
		}
	}
	if len(lookup) == 0 {
		return nil, nil
	}

	const query = `
	SELECT fingerprint_id, exact_hash, fuzzy_hashes, components, COALESCE(user_id, ''), session_ids, created_at, last_seen_at
	FROM fingerprints
	WHERE fuzzy_hashes && $1
	ORDER BY last_seen_at DESC
	LIMIT 200`

	rows, err := p.db.QueryContext(ctx, query, pq.Array(lookup))
	if err != nil {
		return nil, unavailable("find by fuzzy hashes", err)
	}
	defer rows.Close()

	var out []FingerprintRecord
	for rows.Next() {
		var rec FingerprintRecord
		var components []byte
		if err := rows.Scan(&rec.FingerprintID, &rec.ExactHash, pq.Array(&rec.FuzzyHashes), &components,
			&rec.UserID, pq.Array(&rec.SessionIDs), &rec.CreatedAt, &rec.LastSeenAt); err != nil {
			return nil, unavailable("scan fuzzy candidate", err)
		}
		if err := json.Unmarshal(components, &rec.Components); err != nil {
			return nil, unavailable("decode components", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate fuzzy candidates", err)
	}
	return out, nil
}

func (p *Postgres) UpsertFingerprint(ctx context.Context, rec FingerprintRecord, ifAbsentOnly bool) (*FingerprintRecord, error) {
	// ON CONFLICT keeps the first-assigned fingerprint_id stable; a repeat
	// observation only touches last_seen_at and session_ids.
	query := `
	INSERT INTO fingerprints (fingerprint_id, exact_hash, fuzzy_hashes, components, user_id, session_ids, created_at, last_seen_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
	ON CONFLICT (exact_hash) DO UPDATE SET
		last_seen_at = NOW(),
		user_id = COALESCE(fingerprints.user_id, EXCLUDED.user_id),
		session_ids = (
			SELECT ARRAY(SELECT DISTINCT unnest(fingerprints.session_ids || EXCLUDED.session_ids))
		)
	RETURNING fingerprint_id, exact_hash, fuzzy_hashes, components, COALESCE(user_id, ''), session_ids, created_at, last_seen_at`
	if ifAbsentOnly {
		query = `
	INSERT INTO fingerprints (fingerprint_id, exact_hash, fuzzy_hashes, components, user_id, session_ids, created_at, last_seen_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
	ON CONFLICT (exact_hash) DO UPDATE SET last_seen_at = fingerprints.last_seen_at
	RETURNING fingerprint_id, exact_hash, fuzzy_hashes, components, COALESCE(user_id, ''), session_ids, created_at, last_seen_at`
	}

	components, err := json.Marshal(rec.Components)
	if err != nil {
		return nil, unavailable("encode components", err)
	}

	var out FingerprintRecord
	var stored []byte
	err = p.db.QueryRowContext(ctx, query,
		rec.FingerprintID, rec.ExactHash, pq.Array(rec.FuzzyHashes), components,
		rec.UserID, pq.Array(rec.SessionIDs)).Scan(
		&out.FingerprintID, &out.ExactHash, pq.Array(&out.FuzzyHashes), &stored,
		&out.UserID, pq.Array(&out.SessionIDs), &out.CreatedAt, &out.LastSeenAt)
	if err != nil {
		return nil, unavailable("upsert fingerprint", err)
	}
	if err := json.Unmarshal(stored, &out.Components); err != nil {
		return nil, unavailable("decode components", err)
	}
	return &out, nil
}

func (p *Postgres) GetAssociation(ctx context.Context, fingerprintID string) (*VisitorAssociation, error) {
	const query = `
	SELECT visitor_id, fingerprint_id, confidence, created_at
	FROM visitor_associations
	WHERE fingerprint_id = $1`

	var assoc VisitorAssociation
	err := p.db.QueryRowContext(ctx, query, fingerprintID).Scan(
		&assoc.VisitorID, &assoc.FingerprintID, &assoc.Confidence, &assoc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get association", err)
	}
	return &assoc, nil
}

func (p *Postgres) CreateAssociationIfAbsent(ctx context.Context, assoc VisitorAssociation) (*VisitorAssociation, error) {
	// DO NOTHING + reread implements first-writer-wins under concurrency:
	// whichever insert commits first owns the fingerprint.
	const insert = `
	INSERT INTO visitor_associations (visitor_id, fingerprint_id, confidence, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (fingerprint_id) DO NOTHING`

	if _, err := p.db.ExecContext(ctx, insert, assoc.VisitorID, assoc.FingerprintID, assoc.Confidence); err != nil {
		return nil, unavailable("create association", err)
	}
	stored, err := p.GetAssociation(ctx, assoc.FingerprintID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, unavailable("create association", fmt.Errorf("association missing after insert"))
	}
	return stored, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
