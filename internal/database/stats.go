package database

// GetStats counts stored ads, VOC rows and reports by status.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{ReportsByStatus: map[string]int{}}
	for query, dest := range map[string]*int{
		"SELECT COUNT(*) FROM ads":           &s.Ads,
		"SELECT COUNT(*) FROM voc_topics":    &s.VOCTopics,
		"SELECT COUNT(*) FROM voc_verbatims": &s.VOCVerbatims,
	} {
		if err := db.conn.QueryRow(query).Scan(dest); err != nil {
			return nil, err
		}
	}

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM reports GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		s.ReportsByStatus[status] = n
	}
	return s, rows.Err()
}
