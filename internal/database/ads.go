package database

import (
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/adreport/internal/creative"
)

// UpsertAds stores ads by ID, replacing earlier imports of the same ID.
// It returns the number of ads written.
func (db *DB) UpsertAds(ads []creative.Ad) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO ads (id, headline, status, ad_format, delivery_start, delivery_end, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, ad := range ads {
		if ad.ID == "" {
			db.logger.Warn("Skipping ad without id")
			continue
		}
		raw, err := json.Marshal(ad)
		if err != nil {
			return 0, fmt.Errorf("encoding ad %s: %w", ad.ID, err)
		}
		start := ad.DeliveryStart
		if start == nil {
			start = ad.StartedRunningOn
		}
		if _, err := stmt.Exec(ad.ID, ad.Headline, ad.Status, nullIfEmpty(ad.Format), start, ad.DeliveryEnd, string(raw)); err != nil {
			return 0, fmt.Errorf("storing ad %s: %w", ad.ID, err)
		}
		n++
	}
	return n, tx.Commit()
}

// ListAds returns every stored ad in import order.
func (db *DB) ListAds() ([]creative.Ad, error) {
	rows, err := db.conn.Query("SELECT id, raw_json FROM ads ORDER BY imported_at, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ads []creative.Ad
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var ad creative.Ad
		if err := json.Unmarshal([]byte(raw), &ad); err != nil {
			return nil, fmt.Errorf("decoding ad %s: %w", id, err)
		}
		ads = append(ads, ad)
	}
	return ads, rows.Err()
}

// CountAds returns the number of stored ads.
func (db *DB) CountAds() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM ads").Scan(&n)
	return n, err
}

// ClearAds deletes every stored ad.
func (db *DB) ClearAds() error {
	_, err := db.conn.Exec("DELETE FROM ads")
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
