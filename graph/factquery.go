/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"encoding/json"
	"fmt"

	"devt.de/krotik/linkedrecords/graph/util"
)

/*
NodeMatcher matches nodes in the subject or object position of a fact. It is
either a literal node id or a [predicate, object] pattern which matches all
nodes that reach the object by following the predicate transitively.
*/
type NodeMatcher struct {
	ID        string // Literal node id
	Predicate string // Pattern predicate
	Object    string // Pattern object
}

/*
Literal creates a NodeMatcher for a literal node id.
*/
func Literal(id string) NodeMatcher {
	return NodeMatcher{ID: id}
}

/*
Reachable creates a NodeMatcher for all nodes which reach a given object via
a given predicate.
*/
func Reachable(predicate string, object string) NodeMatcher {
	return NodeMatcher{Predicate: predicate, Object: object}
}

/*
IsPattern returns if this matcher is a [predicate, object] pattern.
*/
func (m NodeMatcher) IsPattern() bool {
	return m.ID == "" && m.Predicate != ""
}

/*
String returns a string representation of this matcher.
*/
func (m NodeMatcher) String() string {
	if m.IsPattern() {
		return fmt.Sprintf("[%v %v]", m.Predicate, m.Object)
	}
	return m.ID
}

/*
FactQuery is a filter for the fact store. Empty fields do not constrain the
result. Multiple entries for the same field are intersected.
*/
type FactQuery struct {
	Subject   []NodeMatcher
	Predicate []string
	Object    []NodeMatcher
	User      string // Only return facts visible to this user (empty for all facts)
}

/*
ParseNodeMatchers parses a JSON list of node matchers. Each entry is either a
string (literal id) or a list of two strings (pattern). A single string is
accepted as a list with one entry.
*/
func ParseNodeMatchers(raw string) ([]NodeMatcher, error) {
	var ret []NodeMatcher
	var single string
	var entries []interface{}

	if raw == "" {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []NodeMatcher{Literal(single)}, nil
	}

	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, &util.GraphError{Type: util.ErrInvalidQuery,
			Detail: fmt.Sprintf("Could not parse node list %v: %v", raw, err)}
	}

	for _, e := range entries {
		switch v := e.(type) {
		case string:
			ret = append(ret, Literal(v))

		case []interface{}:
			p, ok1 := elementString(v, 0)
			o, ok2 := elementString(v, 1)

			if !ok1 || !ok2 || len(v) != 2 {
				return nil, &util.GraphError{Type: util.ErrInvalidQuery,
					Detail: fmt.Sprintf("Pattern must be a list of two strings: %v", v)}
			}

			ret = append(ret, Reachable(p, o))

		default:
			return nil, &util.GraphError{Type: util.ErrInvalidQuery,
				Detail: fmt.Sprintf("Invalid node list entry: %v", v)}
		}
	}

	return ret, nil
}

/*
ParsePredicates parses a JSON list of predicates. A single string is accepted
as a list with one entry.
*/
func ParsePredicates(raw string) ([]string, error) {
	var single string
	var ret []string

	if raw == "" {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []string{single}, nil
	}

	if err := json.Unmarshal([]byte(raw), &ret); err != nil {
		return nil, &util.GraphError{Type: util.ErrInvalidQuery,
			Detail: fmt.Sprintf("Could not parse predicate list %v: %v", raw, err)}
	}

	return ret, nil
}

func elementString(l []interface{}, i int) (string, bool) {
	if i >= len(l) {
		return "", false
	}
	s, ok := l[i].(string)
	return s, ok
}
