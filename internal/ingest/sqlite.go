package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"reviewpulse/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

const reviewsSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL,
	date       TEXT DEFAULT '',
	rating     REAL,
	guest_name TEXT DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(date);
`

// OpenReviewDB opens (creating if needed) a SQLite file holding a reviews table.
func OpenReviewDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(reviewsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating reviews schema: %w", err)
	}
	return db, nil
}

// InsertReviews appends items in one transaction. Dates are stored in their
// serialized form so week labels survive.
func InsertReviews(db *sql.DB, items []domain.RawFeedbackItem) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO reviews (text, date, rating, guest_name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		date := ""
		if item.Date != nil {
			date = item.Date.String()
		}
		var rating sql.NullFloat64
		if item.Rating != nil {
			rating = sql.NullFloat64{Float64: *item.Rating, Valid: true}
		}
		if _, err := stmt.Exec(item.Text, date, rating, item.GuestName); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

// ReadReviews loads every non-empty review in insertion order.
func ReadReviews(ctx context.Context, db *sql.DB, opts Options) ([]domain.RawFeedbackItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT text, COALESCE(date, ''), rating, COALESCE(guest_name, '')
		 FROM reviews WHERE TRIM(text) != '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var items []domain.RawFeedbackItem
	for rows.Next() {
		var item domain.RawFeedbackItem
		var date string
		var rating sql.NullFloat64
		if err := rows.Scan(&item.Text, &date, &rating, &item.GuestName); err != nil {
			return nil, err
		}
		if d, ok := parseDate(date, opts.location()); ok {
			item.Date = d
		}
		if rating.Valid {
			v := rating.Float64
			item.Rating = &v
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return renumber(items), nil
}

func ReadSQLite(ctx context.Context, path string, opts Options) ([]domain.RawFeedbackItem, error) {
	db, err := OpenReviewDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return ReadReviews(ctx, db, opts)
}
