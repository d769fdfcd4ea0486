package database

import (
	"database/sql"
	"errors"
	"time"
)

// CreateReport inserts a pending report job.
func (db *DB) CreateReport(id string, cutoff time.Time, total int) error {
	_, err := db.conn.Exec(
		`INSERT INTO reports (id, status, cutoff, progress_total) VALUES (?, 'pending', ?, ?)`,
		id, cutoff.UTC().Format(time.RFC3339), total,
	)
	return err
}

// SetReportStatus moves a report to status, recording errMsg when non-empty.
func (db *DB) SetReportStatus(id, status, errMsg string) error {
	return db.execOne(
		`UPDATE reports SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?`,
		status, nullIfEmpty(errMsg), id,
	)
}

// SetReportProgress records how many ads have been processed.
func (db *DB) SetReportProgress(id string, current, total int) error {
	return db.execOne(
		`UPDATE reports SET progress_current = ?, progress_total = ?, updated_at = datetime('now') WHERE id = ?`,
		current, total, id,
	)
}

// CompleteReport stores the final report document and marks it complete.
func (db *DB) CompleteReport(id string, reportJSON []byte) error {
	return db.execOne(
		`UPDATE reports SET status = 'complete', report_json = ?, error = NULL,
		progress_current = progress_total, updated_at = datetime('now') WHERE id = ?`,
		string(reportJSON), id,
	)
}

// GetReport returns a report by ID, or ErrNotFound.
func (db *DB) GetReport(id string) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, status, cutoff, progress_current, progress_total, error, report_json, created_at, updated_at
		FROM reports WHERE id = ?`, id,
	)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReports returns reports newest first, without their JSON bodies.
func (db *DB) ListReports(limit int) ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, status, cutoff, progress_current, progress_total, error, NULL, created_at, updated_at
		FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*Report, error) {
	var r Report
	if err := s.Scan(&r.ID, &r.Status, &r.Cutoff, &r.ProgressCurrent, &r.ProgressTotal,
		&r.Error, &r.ReportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) execOne(query string, args ...any) error {
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
