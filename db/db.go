package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"ugly/models"
)

const queryTimeout = 30 * time.Second

// DB handles all storage for the subscription service
type DB struct {
	db *sql.DB
}

func NewDB(database string) (*DB, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Read operations

// ListSubscribed returns every subscribed feed ordered by title
func (db *DB) ListSubscribed(ctx context.Context) ([]models.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("feeds.id", "feeds.url", "feeds.title", "feeds.link", "feeds.description").
		From("feeds").
		Join("subscriptions", "subscriptions.feed_id = feeds.id").
		OrderBy("feeds.title", "feeds.id").Asc()

	query, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	feeds := []models.Feed{}
	for rows.Next() {
		var feed models.Feed
		if err := rows.Scan(&feed.Id, &feed.Url, &feed.Title, &feed.Link, &feed.Description); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// FindFeedByUrl returns nil when no feed row exists for url
func (db *DB) FindFeedByUrl(ctx context.Context, url string) (*models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "url", "title", "link", "description").From("feeds").Where(sb.Equal("url", url))
	return db.findFeed(ctx, sb)
}

func (db *DB) findFeed(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args := sb.Build()
	var feed models.Feed
	err := db.db.QueryRowContext(ctx, query, args...).Scan(&feed.Id, &feed.Url, &feed.Title, &feed.Link, &feed.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &feed, nil
}

func (db *DB) IsSubscribed(ctx context.Context, feedId int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("count(*)").From("subscriptions").Where(sb.Equal("feed_id", feedId))

	query, args := sb.Build()
	var count int
	if err := db.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return count > 0, nil
}

// Write operations

// CreateFeed inserts a feed row and returns it with its new id
func (db *DB) CreateFeed(ctx context.Context, feed models.Feed) (*models.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"url":   feed.Url,
		"title": feed.Title,
	}).Info("Creating feed")

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("feeds").
		Cols("url", "title", "link", "description", "created_at").
		Values(feed.Url, feed.Title, feed.Link, feed.Description, time.Now().Unix())

	query, args := ib.Build()
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert error: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert error: %w", err)
	}
	feed.Id = id
	return &feed, nil
}

// Subscribe marks feedId as subscribed. Subscribing twice is a no-op.
func (db *DB) Subscribe(ctx context.Context, feedId int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("subscriptions").Cols("feed_id", "created_at").Values(feedId, time.Now().Unix())

	query, args := ib.Build()
	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

// Unsubscribe reports whether a subscription was actually removed
func (db *DB) Unsubscribe(ctx context.Context, feedId int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	delb := sqlbuilder.SQLite.NewDeleteBuilder()
	delb.DeleteFrom("subscriptions").Where(delb.Equal("feed_id", feedId))

	query, args := delb.Build()
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete error: %w", err)
	}
	return affected > 0, nil
}
