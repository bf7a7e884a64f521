package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

func (s *Store) GetBlob(ctx context.Context, key string) (Blob, error) {
	q := s.sql.Select("blob_key", "value", "updated_at").
		From("kv_blobs").
		Where(sq.Eq{"blob_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Blob{}, fmt.Errorf("build get blob query: %w", err)
	}

	var b Blob
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&b.Key, &b.Value, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("get blob: %w", err)
	}
	return b, nil
}

func (s *Store) PutBlob(ctx context.Context, key, value string) error {
	q := s.sql.Insert("kv_blobs").
		Columns("blob_key", "value", "updated_at").
		Values(key, value, nowExpr(s.driver)).
		Suffix("ON CONFLICT(blob_key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build put blob query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	q := s.sql.Delete("kv_blobs").Where(sq.Eq{"blob_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete blob query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) LogAction(ctx context.Context, e AuditEntry) error {
	if strings.TrimSpace(e.MetaJSON) == "" {
		e.MetaJSON = "{}"
	}
	if !json.Valid([]byte(e.MetaJSON)) {
		e.MetaJSON = "{}"
	}

	q := s.sql.Insert("audit_log").
		Columns("subject", "action", "meta_json").
		Values(e.Subject, e.Action, e.MetaJSON)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentActions lists audit records newest first.
func (s *Store) RecentActions(ctx context.Context, limit uint64) ([]AuditRecord, error) {
	if limit == 0 {
		limit = 50
	}
	q := s.sql.Select("id", "subject", "action", "meta_json", "created_at").
		From("audit_log").
		OrderBy("id DESC").
		Limit(limit)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent actions query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent actions: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.Subject, &r.Action, &r.MetaJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
