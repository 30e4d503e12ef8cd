package db

import (
	"database/sql"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// pragmas run on every new connection the driver opens
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

func dsn(database string) string {
	query := url.Values{"_pragma": pragmas}
	return database + "?" + query.Encode()
}

func connection(database string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(database))
	if err != nil {
		return nil, err
	}

	// Subscribe and unsubscribe both write, and sqlite takes one writer
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
