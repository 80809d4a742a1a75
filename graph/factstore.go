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
	"context"
	"database/sql"
	"fmt"
	"strings"

	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
closureQuery finds all subjects which reach an object by following a predicate.
*/
const closureQuery = `WITH RECURSIVE closure(node) AS (
		SELECT subject FROM facts WHERE predicate = ? AND object = ? AND fact_box_id <> ?
		UNION
		SELECT f.subject FROM facts f JOIN closure c ON f.object = c.node
			WHERE f.predicate = ? AND f.fact_box_id <> ?
	)
	SELECT node FROM closure ORDER BY node`

/*
objectClosureQuery finds all objects which are reached from a subject by
following a predicate.
*/
const objectClosureQuery = `WITH RECURSIVE closure(node) AS (
		SELECT object FROM facts WHERE subject = ? AND predicate = ? AND fact_box_id <> ?
		UNION
		SELECT f.object FROM facts f JOIN closure c ON f.subject = c.node
			WHERE f.predicate = ? AND f.fact_box_id <> ?
	)
	SELECT node FROM closure ORDER BY node`

// Storing facts
// =============

/*
Save stores a single fact on behalf of an acting user. Returns false if the
fact existed already.
*/
func (gm *Manager) Save(ctx context.Context, fact data.Fact, actor string) (bool, error) {
	saved, err := gm.SaveAll(ctx, []data.Fact{fact}, actor)
	return len(saved) > 0, err
}

/*
SaveAll stores a list of facts on behalf of an acting user. Each fact is
placed by the FactBox allocator. Facts which exist already are skipped. All
facts are stored in a single transaction. Returns the newly stored facts
with their final placement.
*/
func (gm *Manager) SaveAll(ctx context.Context, facts []data.Fact, actor string) ([]data.StoredFact, error) {
	var saved []data.StoredFact
	var events []pendingEvent

	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, &util.GraphError{Type: util.ErrInvalidData, Detail: err.Error()}
		}
	}

	if actor == "" {
		return nil, &util.GraphError{Type: util.ErrInvalidData, Detail: "Need an acting user"}
	}

	err := func() error {
		gm.allocMutex.Lock()
		defer gm.allocMutex.Unlock()

		return graphstorage.WithTransaction(ctx, gm.gs, func(tx graphstorage.Querier) error {
			saved, events = nil, nil

			if err := gm.gs.Dialect().LockAllocation(ctx, tx); err != nil {
				return err
			}

			actorUID, err := ensureUser(ctx, tx, actor)
			if err != nil {
				return err
			}

			a := &allocation{gm, tx, actor, actorUID, nil}

			for _, f := range facts {

				if _, ok, err := factPlacement(ctx, tx, f); ok || err != nil {
					if err != nil {
						return err
					}
					continue
				}

				p, err := a.place(ctx, f)
				if err != nil {
					return err
				}

				if _, err := tx.ExecContext(ctx, `INSERT INTO facts
					(subject, predicate, object, fact_box_id, graph_id) VALUES (?, ?, ?, ?, ?)`,
					f.Subject, f.Predicate, f.Object, p.FactBox, nullGraph(p.Graph)); err != nil {
					return err
				}

				saved = append(saved, data.StoredFact{Fact: f, Placement: p})
			}

			// Later facts may have merged the partitions of earlier facts

			for i, sf := range saved {
				p, _, err := factPlacement(ctx, tx, sf.Fact)
				if err != nil {
					return err
				}
				saved[i].Placement = p
			}

			events = a.events

			return nil
		})
	}()

	if err != nil {
		return nil, err
	}

	for _, sf := range saved {
		events = append(events, pendingEvent{EventFactCreated, []interface{}{sf, actor}})
	}

	gm.raiseEvents(events)

	return saved, nil
}

// Deleting facts
// ==============

/*
DeleteAll deletes a list of facts on behalf of an acting user. Returns the
deleted facts with the placement they had.
*/
func (gm *Manager) DeleteAll(ctx context.Context, facts []data.Fact, actor string) ([]data.StoredFact, error) {
	var deleted []data.StoredFact

	err := graphstorage.WithTransaction(ctx, gm.gs, func(tx graphstorage.Querier) error {
		deleted = nil

		for _, f := range facts {
			p, ok, err := factPlacement(ctx, tx, f)
			if err != nil {
				return err
			} else if !ok {
				continue
			}

			if _, err := tx.ExecContext(ctx,
				"DELETE FROM facts WHERE subject = ? AND predicate = ? AND object = ?",
				f.Subject, f.Predicate, f.Object); err != nil {
				return err
			}

			deleted = append(deleted, data.StoredFact{Fact: f, Placement: p})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	events := make([]pendingEvent, 0, len(deleted))
	for _, sf := range deleted {
		events = append(events, pendingEvent{EventFactDeleted, []interface{}{sf, actor}})
	}

	gm.raiseEvents(events)

	return deleted, nil
}

/*
Reset deletes all facts and all FactBox memberships.
*/
func (gm *Manager) Reset(ctx context.Context) error {

	err := graphstorage.WithTransaction(ctx, gm.gs, func(tx graphstorage.Querier) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM facts"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM users_fact_boxes")
		return err
	})

	if err == nil {
		gm.raiseEvents([]pendingEvent{{EventFactsReset, nil}})
	}

	return err
}

// Finding facts
// =============

/*
FindAll returns all facts which match a given query.
*/
func (gm *Manager) FindAll(ctx context.Context, fq FactQuery) ([]data.StoredFact, error) {
	return gm.findFacts(ctx, fq, 0)
}

/*
Match checks if a given fact satisfies a query. The subject and object of
the fact must be matched by all node matchers of the query and the predicate
must equal all predicates of the query. Literal matchers are checked without
accessing the storage. The user of the query is ignored.
*/
func (gm *Manager) Match(ctx context.Context, fact data.Fact, fq FactQuery) (bool, error) {
	for _, p := range fq.Predicate {
		if p != fact.Predicate {
			return false, nil
		}
	}

	q := graphstorage.Bind(gm.gs)

	ok, err := matchNode(ctx, q, fact.Subject, fq.Subject)
	if ok && err == nil {
		ok, err = matchNode(ctx, q, fact.Object, fq.Object)
	}

	return ok, err
}

/*
MatchAny checks if a given fact satisfies any of the given queries.
*/
func (gm *Manager) MatchAny(ctx context.Context, fact data.Fact, fqs []FactQuery) (bool, error) {
	for _, fq := range fqs {
		if ok, err := gm.Match(ctx, fact, fq); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

/*
matchNode checks if a node is matched by all given node matchers.
*/
func matchNode(ctx context.Context, q graphstorage.Querier, node string, matchers []NodeMatcher) (bool, error) {
	var patterns []NodeMatcher

	for _, m := range matchers {
		if !m.IsPattern() {
			if m.ID != node {
				return false, nil
			}
			continue
		}
		patterns = append(patterns, m)
	}

	if len(patterns) == 0 {
		return true, nil
	}

	nodes, _, err := resolveMatchers(ctx, q, patterns)
	if err != nil {
		return false, err
	}

	for _, n := range nodes {
		if n == node {
			return true, nil
		}
	}

	return false, nil
}

/*
SubjectClosure returns all nodes which reach a given object by following a
given predicate transitively. A trailing transitive marker on the predicate
is ignored.
*/
func (gm *Manager) SubjectClosure(ctx context.Context, predicate string, object string) ([]string, error) {
	return subjectClosure(ctx, graphstorage.Bind(gm.gs), predicate, object)
}

/*
ObjectsOf returns all objects of facts with a given subject and predicate. If
the transitive flag is set then the predicate is followed transitively.
*/
func (gm *Manager) ObjectsOf(ctx context.Context, subject string, predicate string, transitive bool) ([]string, error) {
	q := graphstorage.Bind(gm.gs)
	predicate = strings.TrimSuffix(predicate, data.TransitiveMarker)

	if transitive {
		rows, err := q.QueryContext(ctx, objectClosureQuery, subject, predicate,
			data.DeactivatedFactBox, predicate, data.DeactivatedFactBox)
		if err != nil {
			return nil, err
		}
		return scanStrings(rows)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT object FROM facts WHERE subject = ? AND predicate = ? AND fact_box_id <> ? ORDER BY object",
		subject, predicate, data.DeactivatedFactBox)
	if err != nil {
		return nil, err
	}

	return scanStrings(rows)
}

func subjectClosure(ctx context.Context, q graphstorage.Querier, predicate string, object string) ([]string, error) {
	predicate = strings.TrimSuffix(predicate, data.TransitiveMarker)

	rows, err := q.QueryContext(ctx, closureQuery, predicate, object,
		data.DeactivatedFactBox, predicate, data.DeactivatedFactBox)
	if err != nil {
		return nil, err
	}

	return scanStrings(rows)
}

/*
findFacts runs a fact query. A limit of 0 means no limit.
*/
func (gm *Manager) findFacts(ctx context.Context, fq FactQuery, limit int) ([]data.StoredFact, error) {
	var where []string
	var args []interface{}

	q := graphstorage.Bind(gm.gs)

	where = append(where, "fact_box_id <> ?")
	args = append(args, data.DeactivatedFactBox)

	addNodeFilter := func(column string, matchers []NodeMatcher) (bool, error) {
		nodes, constrained, err := resolveMatchers(ctx, q, matchers)
		if err != nil || !constrained {
			return true, err
		} else if len(nodes) == 0 {
			return false, nil
		}

		where = append(where, fmt.Sprintf("%v IN (%v)", column, placeholders(len(nodes))))
		for _, n := range nodes {
			args = append(args, n)
		}

		return true, nil
	}

	if ok, err := addNodeFilter("subject", fq.Subject); !ok || err != nil {
		return nil, err
	}

	if ok, err := addNodeFilter("object", fq.Object); !ok || err != nil {
		return nil, err
	}

	if len(fq.Predicate) > 0 {
		predicates := fq.Predicate[:1]
		for _, p := range fq.Predicate[1:] {
			predicates = intersect(predicates, []string{p})
		}

		if len(predicates) == 0 {
			return nil, nil
		}

		where = append(where, "predicate = ?")
		args = append(args, predicates[0])
	}

	if fq.User != "" {
		uid, _, err := internalUserID(ctx, q, fq.User)
		if err != nil {
			return nil, err
		}

		where = append(where, `(fact_box_id = 0
			OR (graph_id IS NOT NULL AND fact_box_id = ?)
			OR (graph_id IS NULL AND fact_box_id IN (SELECT fact_box_id FROM users_fact_boxes WHERE user_id = ?)))`)
		args = append(args, uid, uid)
	}

	stmt := fmt.Sprintf(`SELECT subject, predicate, object, fact_box_id, graph_id FROM facts
		WHERE %v ORDER BY subject, predicate, object`, strings.Join(where, " AND "))

	if limit > 0 {
		stmt = fmt.Sprintf("%v LIMIT %v", stmt, limit)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []data.StoredFact

	for rows.Next() {
		var sf data.StoredFact
		var graph sql.NullInt64

		if err := rows.Scan(&sf.Subject, &sf.Predicate, &sf.Object, &sf.FactBox, &graph); err != nil {
			return nil, err
		}

		sf.Graph = graph.Int64
		ret = append(ret, sf)
	}

	return ret, rows.Err()
}

/*
resolveMatchers resolves a list of node matchers into the intersection of the
matched node sets. Returns false if the list does not constrain the nodes.
*/
func resolveMatchers(ctx context.Context, q graphstorage.Querier, matchers []NodeMatcher) ([]string, bool, error) {
	var res []string

	for i, m := range matchers {
		var nodes []string

		if m.IsPattern() {
			var err error
			if nodes, err = subjectClosure(ctx, q, m.Predicate, m.Object); err != nil {
				return nil, true, err
			}
		} else {
			nodes = []string{m.ID}
		}

		if i == 0 {
			res = nodes
		} else {
			res = intersect(res, nodes)
		}

		if len(res) == 0 {
			break
		}
	}

	return res, len(matchers) > 0, nil
}

/*
factPlacement returns the placement of a stored fact.
*/
func factPlacement(ctx context.Context, q graphstorage.Querier, f data.Fact) (data.Placement, bool, error) {
	var p data.Placement
	var graph sql.NullInt64

	err := q.QueryRowContext(ctx,
		"SELECT fact_box_id, graph_id FROM facts WHERE subject = ? AND predicate = ? AND object = ?",
		f.Subject, f.Predicate, f.Object).Scan(&p.FactBox, &graph)

	if err == sql.ErrNoRows {
		return p, false, nil
	}

	p.Graph = graph.Int64

	return p, err == nil, err
}

/*
intersect returns all entries of a which are also in b. The order of a is kept.
*/
func intersect(a []string, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}

	ret := make([]string, 0, len(a))
	for _, s := range a {
		if set[s] {
			ret = append(ret, s)
			delete(set, s)
		}
	}

	return ret
}
