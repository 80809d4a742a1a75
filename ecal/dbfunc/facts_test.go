/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dbfunc

import (
	"fmt"
	"testing"

	"devt.de/krotik/linkedrecords/attribute"
	"devt.de/krotik/linkedrecords/auth"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/query"
)

func ecalFacts(triples ...[3]string) []interface{} {
	var ret []interface{}
	for _, t := range triples {
		ret = append(ret, []interface{}{t[0], t[1], t[2]})
	}
	return ret
}

func TestStoreFindDeleteFacts(t *testing.T) {
	gm := graph.NewGraphManager(graphstorage.NewMemoryGraphStorage("mystorage"))

	sf := &StoreFactsFunc{gm}
	ff := &FindFactsFunc{gm}
	df := &DeleteFactsFunc{gm}

	for _, f := range []interface {
		DocString() (string, error)
	}{sf, ff, df} {
		if _, err := f.DocString(); err != nil {
			t.Error(err)
			return
		}
	}

	if _, err := sf.Run("", nil, nil, 0, []interface{}{""}); err == nil ||
		err.Error() != "Function requires 2 parameters: acting user and list of facts" {
		t.Error(err)
		return
	}

	if _, err := sf.Run("", nil, nil, 0, []interface{}{"us-a", "bla"}); err == nil ||
		err.Error() != "Facts must be a list of [subject, predicate, object] lists" {
		t.Error(err)
		return
	}

	if _, err := sf.Run("", nil, nil, 0, []interface{}{"us-a", []interface{}{[]interface{}{"a", "b"}}}); err == nil ||
		err.Error() != "Fact must be a [subject, predicate, object] list: [a b]" {
		t.Error(err)
		return
	}

	res, err := sf.Run("", nil, nil, 0, []interface{}{"us-a", ecalFacts(
		[3]string{"openTodo", "isA", "todo"},
		[3]string{"t1", "isA", "openTodo"},
		[3]string{"t1", "title", "Shopping"},
	)})

	if err != nil || res != float64(3) {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, err := ff.Run("", nil, nil, 0, []interface{}{"bla"}); err == nil || err.Error() != "Parameter must be a map" {
		t.Error(err)
		return
	}

	res, err = ff.Run("", nil, nil, 0, []interface{}{map[interface{}]interface{}{
		"subject": []interface{}{[]interface{}{"isA", "todo"}},
	}})

	if err != nil || fmt.Sprint(res) != "[[openTodo isA todo] [t1 isA openTodo] [t1 title Shopping]]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	res, err = ff.Run("", nil, nil, 0, []interface{}{map[interface{}]interface{}{
		"subject":   "t1",
		"predicate": []interface{}{"title"},
	}})

	if err != nil || fmt.Sprint(res) != "[[t1 title Shopping]]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, err := ff.Run("", nil, nil, 0, []interface{}{map[interface{}]interface{}{
		"subject": 1,
	}}); err == nil {
		t.Error("Unexpected result:", err)
		return
	}

	res, err = df.Run("", nil, nil, 0, []interface{}{"us-a", ecalFacts([3]string{"t1", "title", "Shopping"})})

	if err != nil || res != float64(1) {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, err := df.Run("", nil, nil, 0, []interface{}{"us-a"}); err == nil {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestResolveQuery(t *testing.T) {
	gs := graphstorage.NewMemoryGraphStorage("mystorage")
	gm := graph.NewGraphManager(gs)

	attrs, _ := attribute.NewDefaultRegistry(gs, attribute.NewMemoryBlobStore())
	rq := &ResolveQueryFunc{query.NewResolver(gm, auth.NewEngine(gm, nil), attrs)}

	if _, err := rq.DocString(); err != nil {
		t.Error(err)
		return
	}

	(&StoreFactsFunc{gm}).Run("", nil, nil, 0, []interface{}{"us-a", ecalFacts(
		[3]string{"openTodo", "isA", "todo"},
		[3]string{"t1", "isA", "openTodo"},
	)})

	if _, err := rq.Run("", nil, nil, 0, []interface{}{}); err == nil {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := rq.Run("", nil, nil, 0, []interface{}{"x"}); err == nil || err.Error() != "Parameter must be a map" {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := rq.Run("", nil, nil, 0, []interface{}{map[interface{}]interface{}{"a": 1}}); err == nil {
		t.Error("Unexpected result:", err)
		return
	}

	res, err := rq.Run("", nil, nil, 0, []interface{}{map[interface{}]interface{}{
		"todos": []interface{}{[]interface{}{"$it", "isA", "todo"}},
		"one":   "t1",
	}})

	if err != nil || fmt.Sprint(res) != "map[one:t1 todos:[openTodo t1]]" {
		t.Error("Unexpected result:", res, err)
		return
	}
}
