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
Package dbfunc contains LinkedRecords specific functions for the event condition action language (ECAL).
*/
package dbfunc

import (
	"context"
	"encoding/json"
	"fmt"

	"devt.de/krotik/ecal/parser"
	"devt.de/krotik/ecal/scope"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
)

/*
StoreFactsFunc stores a list of facts on behalf of a user.
*/
type StoreFactsFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *StoreFactsFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res []data.StoredFact

	if len(args) != 2 {
		return nil, fmt.Errorf("Function requires 2 parameters: acting user and list of facts")
	}

	facts, err := FactsFromECALList(args[1])

	if err == nil {
		res, err = f.GM.SaveAll(context.Background(), facts, fmt.Sprint(args[0]))
	}

	return float64(len(res)), err
}

/*
DocString returns a descriptive string.
*/
func (f *StoreFactsFunc) DocString() (string, error) {
	return "Stores a list of facts ([subject, predicate, object]) on behalf of a user. Returns the number of new facts.", nil
}

/*
DeleteFactsFunc deletes a list of facts on behalf of a user.
*/
type DeleteFactsFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *DeleteFactsFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res []data.StoredFact

	if len(args) != 2 {
		return nil, fmt.Errorf("Function requires 2 parameters: acting user and list of facts")
	}

	facts, err := FactsFromECALList(args[1])

	if err == nil {
		res, err = f.GM.DeleteAll(context.Background(), facts, fmt.Sprint(args[0]))
	}

	return float64(len(res)), err
}

/*
DocString returns a descriptive string.
*/
func (f *DeleteFactsFunc) DocString() (string, error) {
	return "Deletes a list of facts ([subject, predicate, object]) on behalf of a user. Returns the number of deleted facts.", nil
}

/*
FindFactsFunc finds facts.
*/
type FindFactsFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *FindFactsFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var fq graph.FactQuery

	if len(args) != 1 {
		return nil, fmt.Errorf("Function requires 1 parameter: query map with subject, predicate and object")
	}

	qm, ok := args[0].(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("Parameter must be a map")
	}

	raw := func(key string) string {
		if v, ok := qm[key]; ok {
			res, _ := json.Marshal(scope.ConvertECALToJSONObject(v))
			return string(res)
		}
		return ""
	}

	var err error

	if fq.Subject, err = graph.ParseNodeMatchers(raw("subject")); err == nil {
		if fq.Predicate, err = graph.ParsePredicates(raw("predicate")); err == nil {
			fq.Object, err = graph.ParseNodeMatchers(raw("object"))
		}
	}

	if err != nil {
		return nil, err
	}

	facts, err := f.GM.FindAll(context.Background(), fq)
	if err != nil {
		return nil, err
	}

	ret := make([]interface{}, 0, len(facts))
	for _, sf := range facts {
		ret = append(ret, []interface{}{sf.Subject, sf.Predicate, sf.Object})
	}

	return ret, nil
}

/*
DocString returns a descriptive string.
*/
func (f *FindFactsFunc) DocString() (string, error) {
	return "Finds facts. The query map can contain subject, predicate and object filters.", nil
}

/*
FactsFromECALList converts an ECAL list of [subject, predicate, object] lists
into a list of facts.
*/
func FactsFromECALList(v interface{}) ([]data.Fact, error) {
	l, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("Facts must be a list of [subject, predicate, object] lists")
	}

	facts := make([]data.Fact, 0, len(l))

	for _, e := range l {
		t, ok := e.([]interface{})
		if !ok || len(t) != 3 {
			return nil, fmt.Errorf("Fact must be a [subject, predicate, object] list: %v", e)
		}

		facts = append(facts, data.NewFact(fmt.Sprint(t[0]), fmt.Sprint(t[1]), fmt.Sprint(t[2])))
	}

	return facts, nil
}
