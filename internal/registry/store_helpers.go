package registry

import (
	"database/sql"
	"strings"
	"time"
)

const assetColumns = "id, slug, name, original_filename, size_bytes, primary_ref, derived_ref, derived_ready, status, backend_ref, backend_url, diagnostics, created_at, updated_at"

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id           int64
		slug         string
		name         sql.NullString
		filename     sql.NullString
		sizeBytes    int64
		primaryRef   string
		derivedRef   sql.NullString
		derivedReady int64
		statusStr    string
		backendRef   sql.NullString
		backendURL   sql.NullString
		diagnostics  sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&slug,
		&name,
		&filename,
		&sizeBytes,
		&primaryRef,
		&derivedRef,
		&derivedReady,
		&statusStr,
		&backendRef,
		&backendURL,
		&diagnostics,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	return &Asset{
		ID:               id,
		Slug:             slug,
		Name:             name.String,
		OriginalFilename: filename.String,
		SizeBytes:        sizeBytes,
		PrimaryRef:       primaryRef,
		DerivedRef:       derivedRef.String,
		DerivedReady:     derivedReady != 0,
		Status:           Status(statusStr),
		BackendRef:       backendRef.String,
		BackendURL:       backendURL.String,
		Diagnostics:      diagnostics.String,
		CreatedAt:        parseTimeString(createdRaw),
		UpdatedAt:        parseTimeString(updatedRaw),
	}, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
