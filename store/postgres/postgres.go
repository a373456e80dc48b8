// Package postgres implements store.Store on top of PostgreSQL, using pgx
// as the driver and lib/pq's pq.Array to bind the ANY($1) array parameter
// in LookupManyByObjects. Persisted state lives in
// three tables: rebac_tuples, rebac_changelog, and interner_symbols.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/nexi-lab/nexus-sub005/store"
)

// DDL creates the tables this backend requires. Callers typically run this
// once via `nexus migrate`.
const DDL = `
CREATE TABLE IF NOT EXISTS rebac_tuples (
	tenant_id         uuid        NOT NULL,
	object_type       varchar(64) NOT NULL,
	object_id         varchar(256) NOT NULL,
	relation          varchar(64) NOT NULL,
	subject_type      varchar(64) NOT NULL,
	subject_id        varchar(256) NOT NULL,
	subject_relation  varchar(64),
	expires_at        timestamptz,
	created_at        timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, object_type, object_id, relation, subject_type, subject_id, subject_relation)
);
CREATE INDEX IF NOT EXISTS rebac_tuples_by_object  ON rebac_tuples (tenant_id, object_type, object_id, relation);
CREATE INDEX IF NOT EXISTS rebac_tuples_by_subject ON rebac_tuples (tenant_id, subject_type, subject_id, relation);
CREATE INDEX IF NOT EXISTS rebac_tuples_userset ON rebac_tuples (tenant_id, subject_type, subject_id, relation) WHERE subject_relation IS NOT NULL;

CREATE TABLE IF NOT EXISTS rebac_changelog (
	seq      bigserial PRIMARY KEY,
	tenant_id uuid NOT NULL,
	kind     varchar(8) NOT NULL,
	tuple    jsonb NOT NULL,
	ts       timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS rebac_changelog_tenant_seq ON rebac_changelog (tenant_id, seq);

CREATE TABLE IF NOT EXISTS interner_symbols (
	sym  integer NOT NULL,
	kind smallint NOT NULL,
	s    text NOT NULL,
	UNIQUE (kind, s)
);
`

// Store implements store.Store against a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-configured pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Bootstrap creates the schema. Intended for tests and `nexus migrate`; it
// is not run implicitly on every New, keeping migration a separate,
// idempotent step.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, DDL)
	return err
}

func (s *Store) Write(ctx context.Context, t store.Tuple) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if t.Relation == store.ParentRelation {
		cyclic, err := s.wouldCycle(ctx, tx, t)
		if err != nil {
			return 0, err
		}
		if cyclic {
			return 0, store.ErrCycle
		}
	}

	var existingSeq int64
	err = tx.QueryRow(ctx, `
		SELECT seq FROM rebac_changelog
		WHERE tenant_id = $1 AND kind = 'write'
		  AND tuple->>'object_type' = $2 AND tuple->>'object_id' = $3
		  AND tuple->>'relation' = $4 AND tuple->>'subject_type' = $5
		  AND tuple->>'subject_id' = $6
		  AND coalesce(tuple->>'subject_relation','') = $7
		ORDER BY seq DESC LIMIT 1`,
		t.Tenant, t.ObjectType, t.ObjectID, t.Relation, t.SubjectType, t.SubjectID, t.SubjectRelation,
	).Scan(&existingSeq)
	if err == nil {
		// Idempotent: identical tuple already present.
		return existingSeq, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO rebac_tuples
			(tenant_id, object_type, object_id, relation, subject_type, subject_id, subject_relation, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tenant_id, object_type, object_id, relation, subject_type, subject_id, subject_relation)
		DO NOTHING`,
		t.Tenant, t.ObjectType, t.ObjectID, t.Relation, t.SubjectType, t.SubjectID, nullIfEmpty(t.SubjectRelation), t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "40001" {
			return 0, &store.WriteConflictError{Key: t.Key(), Err: store.ErrConflict}
		}
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent writer raced us to the same row; idempotent no-op.
		var seq int64
		err = tx.QueryRow(ctx, `SELECT currval(pg_get_serial_sequence('rebac_changelog','seq'))`).Scan(&seq)
		if err != nil {
			seq = 0
		}
		return seq, tx.Commit(ctx)
	}

	seq, err := s.appendChangelog(ctx, tx, t.Tenant, store.ChangeWrite, &t, nil)
	if err != nil {
		return 0, err
	}

	return seq, tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, pk store.Key) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var before store.Tuple
	err = tx.QueryRow(ctx, `
		SELECT tenant_id, object_type, object_id, relation, subject_type, subject_id,
		       coalesce(subject_relation,''), expires_at, created_at
		FROM rebac_tuples
		WHERE tenant_id=$1 AND object_type=$2 AND object_id=$3 AND relation=$4
		  AND subject_type=$5 AND subject_id=$6 AND coalesce(subject_relation,'')=$7`,
		pk.Tenant, pk.ObjectType, pk.ObjectID, pk.Relation, pk.SubjectType, pk.SubjectID, pk.SubjectRelation,
	).Scan(&before.Tenant, &before.ObjectType, &before.ObjectID, &before.Relation,
		&before.SubjectType, &before.SubjectID, &before.SubjectRelation, &before.ExpiresAt, &before.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM rebac_tuples
		WHERE tenant_id=$1 AND object_type=$2 AND object_id=$3 AND relation=$4
		  AND subject_type=$5 AND subject_id=$6 AND coalesce(subject_relation,'')=$7`,
		pk.Tenant, pk.ObjectType, pk.ObjectID, pk.Relation, pk.SubjectType, pk.SubjectID, pk.SubjectRelation,
	)
	if err != nil {
		return 0, err
	}

	seq, err := s.appendChangelog(ctx, tx, pk.Tenant, store.ChangeDelete, nil, &before)
	if err != nil {
		return 0, err
	}

	return seq, tx.Commit(ctx)
}

func (s *Store) appendChangelog(ctx context.Context, tx pgx.Tx, tenant string, kind store.ChangeKind, after, before *store.Tuple) (int64, error) {
	t := after
	if t == nil {
		t = before
	}
	var seq int64
	err := tx.QueryRow(ctx, `
		INSERT INTO rebac_changelog (tenant_id, kind, tuple, ts)
		VALUES ($1, $2, jsonb_build_object(
			'object_type', $3::text, 'object_id', $4::text, 'relation', $5::text,
			'subject_type', $6::text, 'subject_id', $7::text, 'subject_relation', $8::text
		), now())
		RETURNING seq`,
		tenant, kind.String(), t.ObjectType, t.ObjectID, t.Relation, t.SubjectType, t.SubjectID, t.SubjectRelation,
	).Scan(&seq)
	return seq, err
}

func (s *Store) LookupByObject(ctx context.Context, tenant, objectType, objectID, relation string) ([]store.Tuple, error) {
	query := `
		SELECT tenant_id, object_type, object_id, relation, subject_type, subject_id,
		       coalesce(subject_relation,''), expires_at, created_at
		FROM rebac_tuples
		WHERE tenant_id=$1 AND object_type=$2 AND object_id=$3`
	args := []any{tenant, objectType, objectID}
	if relation != "" {
		query += " AND relation=$4"
		args = append(args, relation)
	}
	return s.queryTuples(ctx, query, args...)
}

func (s *Store) LookupBySubject(ctx context.Context, tenant, subjectType, subjectID, relation string) ([]store.Tuple, error) {
	query := `
		SELECT tenant_id, object_type, object_id, relation, subject_type, subject_id,
		       coalesce(subject_relation,''), expires_at, created_at
		FROM rebac_tuples
		WHERE tenant_id=$1 AND subject_type=$2 AND subject_id=$3`
	args := []any{tenant, subjectType, subjectID}
	if relation != "" {
		query += " AND relation=$4"
		args = append(args, relation)
	}
	return s.queryTuples(ctx, query, args...)
}

// LookupManyByObjects batch-loads tuples for several objects in one round
// trip using lib/pq's ANY($1) array binding, for callers doing their own
// batched ancestry/membership prefetch outside the store.Store interface's
// one-object-at-a-time LookupByObject.
func (s *Store) LookupManyByObjects(ctx context.Context, tenant, objectType string, objectIDs []string, relation string) ([]store.Tuple, error) {
	query := `
		SELECT tenant_id, object_type, object_id, relation, subject_type, subject_id,
		       coalesce(subject_relation,''), expires_at, created_at
		FROM rebac_tuples
		WHERE tenant_id=$1 AND object_type=$2 AND object_id = ANY($3)`
	args := []any{tenant, objectType, pq.Array(objectIDs)}
	if relation != "" {
		query += " AND relation=$4"
		args = append(args, relation)
	}
	return s.queryTuples(ctx, query, args...)
}

func (s *Store) queryTuples(ctx context.Context, query string, args ...any) ([]store.Tuple, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Tuple
	for rows.Next() {
		var t store.Tuple
		if err := rows.Scan(&t.Tenant, &t.ObjectType, &t.ObjectID, &t.Relation,
			&t.SubjectType, &t.SubjectID, &t.SubjectRelation, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) LookupTupleset(ctx context.Context, tenant, objectType, objectID, tuplesetRelation string) ([]store.ObjectRef, error) {
	tuples, err := s.LookupByObject(ctx, tenant, objectType, objectID, tuplesetRelation)
	if err != nil {
		return nil, err
	}
	out := make([]store.ObjectRef, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, store.ObjectRef{Type: t.SubjectType, ID: t.SubjectID})
	}
	return out, nil
}

func (s *Store) ChangelogScan(ctx context.Context, tenant string, sinceSeq int64, max int) ([]store.ChangeEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, kind, tuple, ts FROM rebac_changelog
		WHERE tenant_id=$1 AND seq > $2
		ORDER BY seq ASC LIMIT $3`, tenant, sinceSeq, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ChangeEntry
	for rows.Next() {
		var e store.ChangeEntry
		var kind string
		var tupleJSON map[string]any
		if err := rows.Scan(&e.Seq, &kind, &tupleJSON, &e.Ts); err != nil {
			return nil, err
		}
		e.Tenant = tenant
		if kind == "delete" {
			e.Kind = store.ChangeDelete
		} else {
			e.Kind = store.ChangeWrite
		}
		tup := tupleFromJSON(tenant, tupleJSON)
		if e.Kind == store.ChangeDelete {
			e.Before = &tup
		} else {
			e.After = &tup
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CurrentSeq(ctx context.Context, tenant string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT coalesce(max(seq),0) FROM rebac_changelog WHERE tenant_id=$1`, tenant).Scan(&seq)
	return seq, err
}

// wouldCycle checks, before inserting a parent-relation tuple, whether the
// new edge's subject (the parent) can already reach the new edge's object
// by following existing parent edges - which would make the object its own
// ancestor once the edge lands.
func (s *Store) wouldCycle(ctx context.Context, tx pgx.Tx, t store.Tuple) (bool, error) {
	if t.ObjectType != t.SubjectType {
		return false, nil
	}
	var exists bool
	err := tx.QueryRow(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT subject_id AS id FROM rebac_tuples
			WHERE tenant_id=$1 AND object_type=$2 AND object_id=$3 AND relation='parent'
			UNION
			SELECT rt.subject_id FROM rebac_tuples rt
			JOIN ancestors a ON rt.object_id = a.id
			WHERE rt.tenant_id=$1 AND rt.object_type=$2 AND rt.relation='parent'
		)
		SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = $4)`,
		t.Tenant, t.SubjectType, t.SubjectID, t.ObjectID,
	).Scan(&exists)
	return exists, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func tupleFromJSON(tenant string, m map[string]any) store.Tuple {
	str := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	return store.Tuple{
		Tenant:          tenant,
		ObjectType:      str("object_type"),
		ObjectID:        str("object_id"),
		Relation:        str("relation"),
		SubjectType:     str("subject_type"),
		SubjectID:       str("subject_id"),
		SubjectRelation: str("subject_relation"),
	}
}

var _ store.Store = (*Store)(nil)
