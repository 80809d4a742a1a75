/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attribute

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
sqlType stores attribute values as text in a table of the fact storage.
*/
type sqlType struct {
	kind   Kind
	name   string
	table  string
	gs     graphstorage.Storage
	encode func(interface{}) (string, error)
	decode func(string) (interface{}, error)
}

/*
NewKeyValueType creates the type for KeyValueAttributes. Values are stored
as JSON.
*/
func NewKeyValueType(gs graphstorage.Storage) (Type, error) {
	return newSQLType(gs, KindKeyValue, "KeyValueAttribute", "kv_attributes",
		func(v interface{}) (string, error) {
			res, err := json.Marshal(v)
			return string(res), err
		},
		func(s string) (interface{}, error) {
			var v interface{}
			err := json.Unmarshal([]byte(s), &v)
			return v, err
		})
}

/*
NewLongTextType creates the type for LongTextAttributes.
*/
func NewLongTextType(gs graphstorage.Storage) (Type, error) {
	return newSQLType(gs, KindLongText, "LongTextAttribute", "long_text_attributes",
		func(v interface{}) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", util.NewGraphError(util.ErrInvalidData, "Long text value must be a string not %T", v)
			}
			return s, nil
		},
		func(s string) (interface{}, error) {
			return s, nil
		})
}

func newSQLType(gs graphstorage.Storage, kind Kind, name string, table string,
	encode func(interface{}) (string, error), decode func(string) (interface{}, error)) (Type, error) {

	_, err := graphstorage.Bind(gs).ExecContext(context.Background(), fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %v (id TEXT PRIMARY KEY, value TEXT NOT NULL)", table))

	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: err.Error()}
	}

	return &sqlType{kind, name, table, gs, encode, decode}, nil
}

func (t *sqlType) Kind() Kind {
	return t.kind
}

func (t *sqlType) Name() string {
	return t.name
}

/*
Create stores the value of a new attribute.
*/
func (t *sqlType) Create(ctx context.Context, id string, value interface{}) (interface{}, error) {
	s, err := t.encode(value)

	if err == nil {
		_, err = graphstorage.Bind(t.gs).ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %v (id, value) VALUES (?, ?)", t.table), id, s)
	}

	if err != nil {
		return nil, err
	}

	return t.decode(s)
}

/*
Load loads the value of an attribute.
*/
func (t *sqlType) Load(ctx context.Context, id string) (interface{}, bool, error) {
	var s string

	err := graphstorage.Bind(t.gs).QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %v WHERE id = ?", t.table), id).Scan(&s)

	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	v, err := t.decode(s)

	return v, err == nil, err
}

/*
Reset removes all attributes of this type.
*/
func (t *sqlType) Reset(ctx context.Context) error {
	_, err := graphstorage.Bind(t.gs).ExecContext(ctx, fmt.Sprintf("DELETE FROM %v", t.table))
	return err
}
