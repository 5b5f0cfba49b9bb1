package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Create inserts a new asset in the converting state. Slugs that are in use or
// have been retired are rejected with ErrSlugTaken.
func (s *Store) Create(ctx context.Context, in NewAsset) (*Asset, error) {
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		return nil, errors.New("slug is required")
	}
	if strings.TrimSpace(in.PrimaryRef) == "" {
		return nil, errors.New("primary reference is required")
	}

	timestamp := formatTime(time.Now())
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var retired int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM retired_slugs WHERE slug = ?`, slug).Scan(&retired); err != nil {
			return fmt.Errorf("check retired slug: %w", err)
		}
		if retired > 0 {
			return fmt.Errorf("%w: %s was retired", ErrSlugTaken, slug)
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO assets (
                slug, name, original_filename, size_bytes, primary_ref,
                derived_ref, derived_ready, status, backend_ref, backend_url,
                diagnostics, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, NULL, 0, ?, ?, ?, NULL, ?, ?)`,
			slug,
			nullableString(in.Name),
			nullableString(in.OriginalFilename),
			in.SizeBytes,
			in.PrimaryRef,
			StatusConverting,
			nullableString(in.BackendRef),
			nullableString(in.BackendURL),
			timestamp,
			timestamp,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrSlugTaken, slug)
			}
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an asset by id. It returns nil, nil when no row exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// GetBySlug fetches an asset by its public slug. It returns nil, nil when no row exists.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Asset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+assetColumns+` FROM assets WHERE slug = ?`, strings.TrimSpace(slug))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset by slug: %w", err)
	}
	return asset, nil
}

// List returns one page of assets, newest first, plus the total number of
// assets matching the filter.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Asset, int, error) {
	ctx = ensureContext(ctx)
	opts = opts.normalized()

	var (
		clauses []string
		args    []any
	)
	if opts.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(opts.Search)) + "%"
		clauses = append(clauses, `(LOWER(COALESCE(name, '')) LIKE ? ESCAPE '\' OR slug LIKE ? ESCAPE '\' OR LOWER(COALESCE(original_filename, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if opts.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, opts.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	pageArgs := append(append([]any(nil), args...), opts.Limit, (opts.Page-1)*opts.Limit)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// ListConverting returns every asset still awaiting its terminal write, oldest first.
func (s *Store) ListConverting(ctx context.Context) ([]*Asset, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+assetColumns+` FROM assets WHERE status = ? ORDER BY id`,
		StatusConverting,
	)
	if err != nil {
		return nil, fmt.Errorf("list converting: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// Complete applies the terminal transition for a converting asset. Status,
// derived reference, readiness and diagnostics are written in one statement,
// and only while the row is still converting.
func (s *Store) Complete(ctx context.Context, id int64, c Completion) (*Asset, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets
            SET status = ?, derived_ref = ?, derived_ready = ?, diagnostics = ?, updated_at = ?
          WHERE id = ? AND status = ?`,
		c.Status,
		nullableString(c.DerivedRef),
		boolToInt(c.DerivedReady()),
		nullableString(c.Diagnostics),
		formatTime(time.Now()),
		id,
		StatusConverting,
	)
	if err != nil {
		return nil, fmt.Errorf("complete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete asset rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return existing, fmt.Errorf("%w: id %d is %s", ErrNotConverting, id, existing.Status)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the asset row and retires its slug in one transaction. It
// returns the removed record, or nil, nil when the id is unknown.
func (s *Store) Delete(ctx context.Context, id int64) (*Asset, error) {
	ctx = ensureContext(ctx)
	var removed *Asset
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		removed = nil
		row := tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
		asset, err := scanAsset(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO retired_slugs (slug, asset_id, retired_at) VALUES (?, ?, ?)`,
			asset.Slug, asset.ID, formatTime(time.Now()),
		); err != nil {
			return fmt.Errorf("retire slug: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
			return err
		}
		removed = asset
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete asset: %w", err)
	}
	return removed, nil
}

// SlugAvailable reports whether slug is neither in use nor retired.
func (s *Store) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT (SELECT COUNT(1) FROM assets WHERE slug = ?) + (SELECT COUNT(1) FROM retired_slugs WHERE slug = ?)`,
		slug, slug,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count == 0, nil
}
