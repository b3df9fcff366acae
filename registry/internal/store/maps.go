package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// MapRecord is the row-level form of a page map. Elements holds the
// JSON-encoded element list; decoding is the caller's concern.
type MapRecord struct {
	ID               string
	Domain           string
	URL              string
	PageType         string
	Elements         string
	UsageCount       int
	ValidationStatus string
	LastValidated    int64
	CreatedAt        int64
}

const mapColumns = `id, domain, url, page_type, elements, usage_count,
                    validation_status, last_validated, created_at`

// InsertMapIfAbsent inserts a map keyed by normalized URL. If a row for the
// URL already exists the insert is a no-op and the existing row's ID is
// returned with created=false. The first committed writer wins; later
// writers never overwrite.
func (s *Store) InsertMapIfAbsent(ctx context.Context, m *MapRecord) (id string, created bool, err error) {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO maps (id, domain, url, page_type, elements, usage_count, created_at)
		VALUES (?,?,?,?,?,0,?)
		ON CONFLICT(url) DO NOTHING`,
		m.ID, m.Domain, m.URL, m.PageType, m.Elements, m.CreatedAt,
	)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		return m.ID, true, nil
	}

	// lost the race, report the winner's ID
	var existingID string
	err = s.DB.QueryRowContext(ctx, `SELECT id FROM maps WHERE url = ?`, m.URL).Scan(&existingID)
	if err != nil {
		return "", false, err
	}
	return existingID, false, nil
}

// GetMapByURL retrieves a map by exact normalized URL. Returns nil on miss.
func (s *Store) GetMapByURL(ctx context.Context, url string) (*MapRecord, error) {
	m := &MapRecord{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+mapColumns+` FROM maps WHERE url = ?`, url).Scan(
		&m.ID, &m.Domain, &m.URL, &m.PageType, &m.Elements, &m.UsageCount,
		&m.ValidationStatus, &m.LastValidated, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MostUsedMapForDomain returns the domain's map with the highest usage
// count, or nil when the domain has no maps.
func (s *Store) MostUsedMapForDomain(ctx context.Context, domain string) (*MapRecord, error) {
	m := &MapRecord{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT `+mapColumns+` FROM maps WHERE domain = ?
		ORDER BY usage_count DESC, created_at ASC LIMIT 1`, domain).Scan(
		&m.ID, &m.Domain, &m.URL, &m.PageType, &m.Elements, &m.UsageCount,
		&m.ValidationStatus, &m.LastValidated, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMapsByDomain returns all maps for a domain ordered by URL.
func (s *Store) ListMapsByDomain(ctx context.Context, domain string) ([]*MapRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+mapColumns+` FROM maps WHERE domain = ? ORDER BY url`, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []*MapRecord
	for rows.Next() {
		m := &MapRecord{}
		if err := rows.Scan(
			&m.ID, &m.Domain, &m.URL, &m.PageType, &m.Elements, &m.UsageCount,
			&m.ValidationStatus, &m.LastValidated, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// IncrementUsage bumps usage_count for the map with the given URL.
func (s *Store) IncrementUsage(ctx context.Context, url string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE maps SET usage_count = usage_count + 1 WHERE url = ?`, url)
	return err
}

// CountMaps returns the total number of stored maps.
func (s *Store) CountMaps(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps`).Scan(&n)
	return n, err
}

// DomainCount pairs a domain with its map count.
type DomainCount struct {
	Domain string
	Maps   int
}

// TopDomains returns the domains with the most maps, descending.
func (s *Store) TopDomains(ctx context.Context, limit int) ([]DomainCount, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT domain, COUNT(*) AS n FROM maps
		GROUP BY domain ORDER BY n DESC, domain ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DomainCount
	for rows.Next() {
		var d DomainCount
		if err := rows.Scan(&d.Domain, &d.Maps); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
