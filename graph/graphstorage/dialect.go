/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graphstorage

import (
	"context"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver "pgx"
	_ "modernc.org/sqlite"             // SQLite driver "sqlite"
)

/*
allocationLockKey is the advisory lock key which serializes FactBox allocations
across processes.
*/
const allocationLockKey = 0x4c526662

/*
Dialect models the differences between the supported SQL databases.
*/
type Dialect interface {

	/*
		Name returns the name of the dialect.
	*/
	Name() string

	/*
		DriverName returns the database/sql driver name.
	*/
	DriverName() string

	/*
		Rebind rewrites '?' placeholders into the dialect's placeholder syntax.
	*/
	Rebind(query string) string

	/*
		Schema returns the statements which create the schema.
	*/
	Schema() []string

	/*
		NextSequenceValue returns the next value of a named sequence.
	*/
	NextSequenceValue(ctx context.Context, q Querier, seq string) (int64, error)

	/*
		LockAllocation acquires a transaction scoped lock which serializes
		FactBox allocations. The given querier must be a transaction.
	*/
	LockAllocation(ctx context.Context, q Querier) error
}

/*
commonSchema are table definitions which work with all dialects.
*/
var commonSchema = []string{
	`CREATE TABLE IF NOT EXISTS facts (
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		fact_box_id BIGINT NOT NULL DEFAULT 0,
		graph_id BIGINT,
		UNIQUE (subject, predicate, object))`,
	`CREATE INDEX IF NOT EXISTS facts_predicate_object ON facts (predicate, object)`,
	`CREATE INDEX IF NOT EXISTS facts_object ON facts (object)`,
	`CREATE INDEX IF NOT EXISTS facts_placement ON facts (fact_box_id, graph_id)`,
	`CREATE TABLE IF NOT EXISTS users_fact_boxes (
		fact_box_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		PRIMARY KEY (fact_box_id, user_id))`,
	`CREATE INDEX IF NOT EXISTS users_fact_boxes_user ON users_fact_boxes (user_id)`,
}

// SQLite
// ======

/*
SQLiteDialect is the dialect for modernc.org/sqlite.
*/
var SQLiteDialect Dialect = &sqliteDialect{}

type sqliteDialect struct {
}

func (d *sqliteDialect) Name() string {
	return "sqlite"
}

func (d *sqliteDialect) DriverName() string {
	return "sqlite"
}

func (d *sqliteDialect) Rebind(query string) string {
	return query
}

func (d *sqliteDialect) Schema() []string {
	return append([]string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS users (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL)`,
		`INSERT INTO sequences (name, value) VALUES ('` + SequenceFactBoxID + `', 0), ('` +
			SequenceGraphID + `', 0) ON CONFLICT (name) DO NOTHING`,
	}, commonSchema...)
}

/*
NextSequenceValue emulates a sequence with a counter table.
*/
func (d *sqliteDialect) NextSequenceValue(ctx context.Context, q Querier, seq string) (int64, error) {
	var ret int64

	err := q.QueryRowContext(ctx,
		"UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value", seq).Scan(&ret)

	return ret, err
}

/*
LockAllocation is a no-op for SQLite. The database allows only a single
writer and the allocator serializes itself within the process.
*/
func (d *sqliteDialect) LockAllocation(ctx context.Context, q Querier) error {
	return nil
}

// PostgreSQL
// ==========

/*
PostgresDialect is the dialect for PostgreSQL via jackc/pgx.
*/
var PostgresDialect Dialect = &postgresDialect{}

type postgresDialect struct {
}

func (d *postgresDialect) Name() string {
	return "postgres"
}

func (d *postgresDialect) DriverName() string {
	return "pgx"
}

/*
Rebind replaces '?' placeholders with $1, $2 ... Placeholders inside quoted
strings are left alone.
*/
func (d *postgresDialect) Rebind(query string) string {
	var buf strings.Builder

	n := 0
	inQuote := false

	buf.Grow(len(query) + 16)

	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			buf.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			buf.WriteByte('$')
			buf.WriteString(strconv.Itoa(n))
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

func (d *postgresDialect) Schema() []string {
	return append([]string{
		`CREATE TABLE IF NOT EXISTS users (
			_id BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE)`,
		`CREATE SEQUENCE IF NOT EXISTS ` + SequenceFactBoxID + ` START 1`,
		`CREATE SEQUENCE IF NOT EXISTS ` + SequenceGraphID + ` START 1`,
	}, commonSchema...)
}

func (d *postgresDialect) NextSequenceValue(ctx context.Context, q Querier, seq string) (int64, error) {
	var ret int64

	err := q.QueryRowContext(ctx, "SELECT nextval(CAST(? AS regclass))", seq).Scan(&ret)

	return ret, err
}

/*
LockAllocation takes a transaction scoped advisory lock.
*/
func (d *postgresDialect) LockAllocation(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", int64(allocationLockKey))
	return err
}
