/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graphstorage contains the SQL storage backends for a graph manager.

The fact graph lives in a relational database. Two dialects are supported:
SQLite (modernc.org/sqlite, used for single node setups and all tests) and
PostgreSQL (jackc/pgx). All statements in this code base are written with
'?' placeholders and rebound by the dialect.

Tables:

	facts(subject, predicate, object, fact_box_id, graph_id)
	users(_id, id)
	users_fact_boxes(fact_box_id, user_id)

Sequences:

	fact_box_id_seq - fresh FactBox ids
	graph_id_seq    - fresh Graph ids
*/
package graphstorage

import (
	"context"
	"database/sql"
	"fmt"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
Names of the id sequences
*/
const (
	SequenceFactBoxID = "fact_box_id_seq"
	SequenceGraphID   = "graph_id_seq"
)

var logger = logutil.GetLogger("linkedrecords.graphstorage")

/*
Querier is the common query interface of a database handle and a transaction.
*/
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

/*
Storage interface models the storage backend for a graph manager.
*/
type Storage interface {

	/*
	   Name returns the name of the GraphStorage instance.
	*/
	Name() string

	/*
	   DB returns the database handle of this storage.
	*/
	DB() *sql.DB

	/*
	   Dialect returns the SQL dialect of this storage.
	*/
	Dialect() Dialect

	/*
	   Close closes the storage.
	*/
	Close() error
}

/*
SQLGraphStorage data structure
*/
type SQLGraphStorage struct {
	name    string  // Name of the graph storage
	db      *sql.DB // Database handle
	dialect Dialect // SQL dialect of the database
}

/*
NewSQLiteGraphStorage creates a new SQLite backed graph storage. The dsn is
a modernc.org/sqlite data source name (a file path or a file: URI).
*/
func NewSQLiteGraphStorage(name string, dsn string) (Storage, error) {
	db, err := sql.Open(SQLiteDialect.DriverName(), dsn)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error()}
	}

	// SQLite allows only one writer - a single connection avoids busy errors
	// and keeps in-memory databases alive

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLGraphStorage(name, db, SQLiteDialect)
}

/*
NewMemoryGraphStorage creates a new graph storage which is kept in memory.
*/
func NewMemoryGraphStorage(name string) Storage {
	gs, err := NewSQLiteGraphStorage(name, ":memory:")
	if err != nil {
		panic(fmt.Sprintf("Could not create memory graph storage: %v", err))
	}
	return gs
}

/*
NewPostgresGraphStorage creates a new PostgreSQL backed graph storage. The dsn
is a pgx connection string.
*/
func NewPostgresGraphStorage(name string, dsn string) (Storage, error) {
	db, err := sql.Open(PostgresDialect.DriverName(), dsn)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error()}
	}

	return newSQLGraphStorage(name, db, PostgresDialect)
}

/*
NewGraphStorage creates a graph storage for a given driver name (sqlite or postgres).
*/
func NewGraphStorage(name string, driver string, dsn string) (Storage, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteGraphStorage(name, dsn)
	case "postgres", "pgx":
		return NewPostgresGraphStorage(name, dsn)
	}

	return nil, &util.GraphError{Type: util.ErrOpening,
		Detail: fmt.Sprintf("Unknown database driver: %v", driver)}
}

/*
newSQLGraphStorage checks the database connection and ensures the schema.
*/
func newSQLGraphStorage(name string, db *sql.DB, dialect Dialect) (Storage, error) {
	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error()}
	}

	for _, stmt := range dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, &util.GraphError{Type: util.ErrOpening,
				Detail: fmt.Sprintf("Could not create schema: %v", err)}
		}
	}

	logger.Debug(fmt.Sprintf("Opened %v graph storage %v", dialect.Name(), name))

	return &SQLGraphStorage{name, db, dialect}, nil
}

/*
Name returns the name of the GraphStorage instance.
*/
func (gs *SQLGraphStorage) Name() string {
	return gs.name
}

/*
DB returns the database handle of this storage.
*/
func (gs *SQLGraphStorage) DB() *sql.DB {
	return gs.db
}

/*
Dialect returns the SQL dialect of this storage.
*/
func (gs *SQLGraphStorage) Dialect() Dialect {
	return gs.dialect
}

/*
Close closes the storage.
*/
func (gs *SQLGraphStorage) Close() error {
	if err := gs.db.Close(); err != nil {
		return &util.GraphError{Type: util.ErrClosing, Detail: err.Error()}
	}
	return nil
}

/*
WithTransaction runs a given function inside a database transaction. The
transaction is committed if the function returns without error and rolled
back otherwise.
*/
func WithTransaction(ctx context.Context, gs Storage, f func(tx Querier) error) error {
	tx, err := gs.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = f(&boundQuerier{tx, gs.Dialect()}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	committed = true

	return nil
}

/*
Bind returns a Querier for the database handle of a storage which rebinds
all statements to the storage's dialect.
*/
func Bind(gs Storage) Querier {
	return &boundQuerier{gs.DB(), gs.Dialect()}
}

/*
boundQuerier rebinds '?' placeholders before a statement is passed on.
*/
type boundQuerier struct {
	q       Querier
	dialect Dialect
}

func (bq *boundQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return bq.q.ExecContext(ctx, bq.dialect.Rebind(query), args...)
}

func (bq *boundQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return bq.q.QueryContext(ctx, bq.dialect.Rebind(query), args...)
}

func (bq *boundQuerier) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return bq.q.QueryRowContext(ctx, bq.dialect.Rebind(query), args...)
}

/*
DialectOf returns the dialect of a bound querier. Unbound queriers have no dialect.
*/
func DialectOf(q Querier) Dialect {
	if bq, ok := q.(*boundQuerier); ok {
		return bq.dialect
	}
	return nil
}
