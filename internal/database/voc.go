package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/TobiSchelling/adreport/internal/voc"
)

// ReplaceCorpus swaps the stored VOC corpus for corpus.
func (db *DB) ReplaceCorpus(corpus voc.Corpus) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM voc_verbatims"); err != nil {
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM voc_topics"); err != nil {
		return 0, err
	}

	topics := 0
	for _, cat := range corpus.Categories {
		for _, topic := range cat.Topics {
			count := max(topic.VerbatimCount, len(topic.Verbatims))
			var topicID int64
			err := tx.QueryRow(
				"SELECT id FROM voc_topics WHERE category = ? AND label = ?", cat.Name, topic.Label,
			).Scan(&topicID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				res, err := tx.Exec(
					"INSERT INTO voc_topics (category, label, verbatim_count, position) VALUES (?, ?, ?, ?)",
					cat.Name, topic.Label, count, topics,
				)
				if err != nil {
					return 0, fmt.Errorf("storing topic %s / %s: %w", cat.Name, topic.Label, err)
				}
				if topicID, err = res.LastInsertId(); err != nil {
					return 0, err
				}
				topics++
			case err != nil:
				return 0, err
			default:
				// Repeated (category, label) pairs merge into the first.
				if _, err := tx.Exec(
					"UPDATE voc_topics SET verbatim_count = verbatim_count + ? WHERE id = ?", count, topicID,
				); err != nil {
					return 0, fmt.Errorf("merging topic %s / %s: %w", cat.Name, topic.Label, err)
				}
			}
			for _, v := range topic.Verbatims {
				if _, err := tx.Exec("INSERT INTO voc_verbatims (topic_id, text) VALUES (?, ?)", topicID, v); err != nil {
					return 0, err
				}
			}
		}
	}
	return topics, tx.Commit()
}

// LoadCorpus rebuilds the stored corpus, keeping category and topic order.
func (db *DB) LoadCorpus() (voc.Corpus, error) {
	rows, err := db.conn.Query(
		`SELECT t.id, t.category, t.label, t.verbatim_count, v.text
		FROM voc_topics t LEFT JOIN voc_verbatims v ON v.topic_id = t.id
		ORDER BY t.position, t.id, v.id`,
	)
	if err != nil {
		return voc.Corpus{}, err
	}
	defer rows.Close()

	var corpus voc.Corpus
	catIndex := map[string]int{}
	lastTopic := int64(-1)
	for rows.Next() {
		var id int64
		var category, label string
		var count int
		var text *string
		if err := rows.Scan(&id, &category, &label, &count, &text); err != nil {
			return voc.Corpus{}, err
		}

		ci, ok := catIndex[category]
		if !ok {
			ci = len(corpus.Categories)
			catIndex[category] = ci
			corpus.Categories = append(corpus.Categories, voc.Category{Name: category})
		}
		cat := &corpus.Categories[ci]
		if id != lastTopic {
			cat.Topics = append(cat.Topics, voc.Topic{Label: label, VerbatimCount: count})
			lastTopic = id
		}
		if text != nil {
			t := &cat.Topics[len(cat.Topics)-1]
			t.Verbatims = append(t.Verbatims, *text)
		}
	}
	return corpus, rows.Err()
}
