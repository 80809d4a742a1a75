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
Package query contains the compound query resolver.

A compound query maps result group names to either a literal node id or a
list of patterns:

	{
		"todos" : [["$it", "isA", "Todo"], ["$it", "status", "open"]],
		"doc"   : "kv-0f8fad5b-d9cb-469f-a165-70867728950e"
	}

A pattern is a tuple [subject, predicate, object] in which either the
subject or the object is the wildcard $it. A tuple of two elements
[predicate, object] has the wildcard in the subject position. The patterns
of a group are intersected.

Predicates can carry modifiers:

	isA*          follow the predicate transitively (object side)
	$latest(p)    same as p
	$not(p)       exclude nodes which match the pattern
*/
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
Wildcard is the token which marks the position to be solved for.
*/
const Wildcard = "$it"

/*
Pattern is a single pattern of a compound query group.
*/
type Pattern struct {
	Subject   string
	Predicate string
	Object    string
}

/*
SubjectSide returns if the wildcard is in the subject position.
*/
func (p Pattern) SubjectSide() bool {
	return p.Subject == Wildcard && p.Object != Wildcard
}

/*
ObjectSide returns if the wildcard is in the object position.
*/
func (p Pattern) ObjectSide() bool {
	return p.Object == Wildcard && p.Subject != Wildcard
}

/*
Negated returns if the pattern excludes its matches.
*/
func (p Pattern) Negated() bool {
	return strings.HasPrefix(p.Predicate, "$not(")
}

/*
Transitive returns if the predicate is followed transitively.
*/
func (p Pattern) Transitive() bool {
	return strings.HasSuffix(strings.TrimSuffix(p.Predicate, ")"), data.TransitiveMarker)
}

/*
BarePredicate returns the predicate without modifiers.
*/
func (p Pattern) BarePredicate() string {
	return data.StripModifiers(p.Predicate)
}

func (p Pattern) String() string {
	return fmt.Sprintf("[%v %v %v]", p.Subject, p.Predicate, p.Object)
}

/*
Group is a named group of a compound query.
*/
type Group struct {
	Name     string
	Literal  string    // Literal node id (if the group is not a pattern list)
	Patterns []Pattern // Patterns of the group
}

/*
IsLiteral returns if this group is a literal node id.
*/
func (g Group) IsLiteral() bool {
	return g.Patterns == nil
}

/*
CompoundQuery is a parsed compound query.
*/
type CompoundQuery struct {
	Groups []Group // Groups sorted by name
	raw    string
}

/*
ParseCompoundQuery parses a compound query from its JSON representation.
*/
func ParseCompoundQuery(raw string) (*CompoundQuery, error) {
	var obj map[string]interface{}

	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil, invalidQuery("Query must be a JSON object: %v", raw)
	}

	cq := &CompoundQuery{raw: raw}

	for name, v := range obj {
		g := Group{Name: name}

		switch gv := v.(type) {
		case string:
			g.Literal = gv

		case []interface{}:
			g.Patterns = make([]Pattern, 0, len(gv))

			for _, pv := range gv {
				p, err := parsePattern(pv)
				if err != nil {
					return nil, invalidQuery("Group %v: %v", name, err)
				}
				g.Patterns = append(g.Patterns, p)
			}

		default:
			return nil, invalidQuery("Group %v must be a node id or a list of patterns", name)
		}

		cq.Groups = append(cq.Groups, g)
	}

	sort.Slice(cq.Groups, func(i, j int) bool { return cq.Groups[i].Name < cq.Groups[j].Name })

	return cq, nil
}

/*
parsePattern parses a single pattern.
*/
func parsePattern(v interface{}) (Pattern, error) {
	l, ok := v.([]interface{})
	if !ok || len(l) < 2 || len(l) > 3 {
		return Pattern{}, fmt.Errorf("Pattern must be a list of two or three strings: %v", v)
	}

	parts := make([]string, len(l))
	for i, e := range l {
		if parts[i], ok = e.(string); !ok {
			return Pattern{}, fmt.Errorf("Pattern must be a list of two or three strings: %v", v)
		}
	}

	p := Pattern{Wildcard, parts[0], parts[1]}
	if len(parts) == 3 {
		p = Pattern{parts[0], parts[1], parts[2]}
	}

	if p.BarePredicate() == "" {
		return p, fmt.Errorf("Pattern needs a predicate: %v", v)
	} else if p.Subject == Wildcard && p.Object == Wildcard {
		return p, fmt.Errorf("Only one position can be a wildcard: %v", v)
	}

	return p, nil
}

/*
String returns the JSON string this query was parsed from.
*/
func (cq *CompoundQuery) String() string {
	return cq.raw
}

/*
Predicates returns all predicates which are referenced in this query without
their modifiers. A transitive predicate is returned in both forms (p and p*).
*/
func (cq *CompoundQuery) Predicates() []string {
	seen := make(map[string]bool)
	var ret []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			ret = append(ret, p)
		}
	}

	for _, g := range cq.Groups {
		for _, p := range g.Patterns {
			bp := p.BarePredicate()

			add(bp)

			if p.Transitive() {
				add(bp + data.TransitiveMarker)
			}
		}
	}

	sort.Strings(ret)

	return ret
}

func invalidQuery(detail string, args ...interface{}) error {
	return util.NewGraphError(util.ErrInvalidQuery, detail, args...)
}
