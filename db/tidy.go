package db

import (
	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes feed rows nobody is subscribed to any more
func (db *DB) Tidy() (int64, error) {
	subscribed := sb.SQLite.NewSelectBuilder()
	subscribed.Select("feed_id").From("subscriptions")

	deleteFeeds := sb.SQLite.NewDeleteBuilder()
	query, args := deleteFeeds.DeleteFrom("feeds").Where(deleteFeeds.NotIn("id", subscribed)).Build()

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Info("Tidying database")

	res, err := db.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
