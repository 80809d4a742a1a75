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
	"sync"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
)

var logger = logutil.GetLogger("linkedrecords.graph")

/*
Manager data structure
*/
type Manager struct {
	gs         graphstorage.Storage // Graph storage of this graph manager
	gr         *graphRulesManager   // Manager for graph rules
	allocMutex *sync.Mutex          // Mutex to serialize FactBox allocations
}

/*
NewGraphManager returns a new GraphManager instance.
*/
func NewGraphManager(gs graphstorage.Storage) *Manager {
	gm := createGraphManager(gs)

	gm.SetGraphRule(&SystemRuleUpdateMetrics{})

	return gm
}

/*
createGraphManager creates a new GraphManager instance.
*/
func createGraphManager(gs graphstorage.Storage) *Manager {
	gm := &Manager{gs, &graphRulesManager{nil, make(map[string]Rule),
		make(map[int]map[string]Rule), &sync.RWMutex{}}, &sync.Mutex{}}

	gm.gr.gm = gm

	return gm
}

/*
Name returns the name of this graph manager.
*/
func (gm *Manager) Name() string {
	return fmt.Sprint("Graph ", gm.gs.Name())
}

/*
Storage returns the graph storage of this graph manager.
*/
func (gm *Manager) Storage() graphstorage.Storage {
	return gm.gs
}

/*
SetGraphRule sets a GraphRule.
*/
func (gm *Manager) SetGraphRule(rule Rule) {
	gm.gr.SetGraphRule(rule)
}

/*
GraphRules returns a list of all available graph rules.
*/
func (gm *Manager) GraphRules() []string {
	return gm.gr.GraphRules()
}

/*
raiseEvents sends a list of events to all rules. Rule errors are logged since
the changes have already been committed.
*/
func (gm *Manager) raiseEvents(events []pendingEvent) {
	for _, e := range events {
		if err := gm.gr.graphEvent(e.event, e.data...); err != nil {
			logger.Warning(fmt.Sprintf("Graph rule error for event %v: %v", e.event, err))
		}
	}
}

/*
pendingEvent is an event which is raised once a transaction has been committed.
*/
type pendingEvent struct {
	event int
	data  []interface{}
}

// Users
// =====

/*
InternalUserID looks up the internal id of a given user id. Returns false if
the user is not known.
*/
func (gm *Manager) InternalUserID(ctx context.Context, userID string) (int64, bool, error) {
	return internalUserID(ctx, graphstorage.Bind(gm.gs), userID)
}

/*
EnsureUser returns the internal id of a given user id. The user is created if
it does not exist.
*/
func (gm *Manager) EnsureUser(ctx context.Context, userID string) (int64, error) {
	return ensureUser(ctx, graphstorage.Bind(gm.gs), userID)
}

/*
UserIDs looks up the external ids for a list of internal user ids.
*/
func (gm *Manager) UserIDs(ctx context.Context, internalIDs []int64) ([]string, error) {
	var ret []string

	if len(internalIDs) == 0 {
		return ret, nil
	}

	args := make([]interface{}, len(internalIDs))
	for i, id := range internalIDs {
		args[i] = id
	}

	rows, err := graphstorage.Bind(gm.gs).QueryContext(ctx,
		fmt.Sprintf("SELECT id FROM users WHERE _id IN (%v) ORDER BY _id", placeholders(len(args))), args...)
	if err != nil {
		return nil, err
	}

	return scanStrings(rows)
}

func internalUserID(ctx context.Context, q graphstorage.Querier, userID string) (int64, bool, error) {
	var id int64

	err := q.QueryRowContext(ctx, "SELECT _id FROM users WHERE id = ?", userID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}

	return id, err == nil, err
}

func ensureUser(ctx context.Context, q graphstorage.Querier, userID string) (int64, error) {

	if id, ok, err := internalUserID(ctx, q, userID); ok || err != nil {
		return id, err
	}

	if _, err := q.ExecContext(ctx,
		"INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING", userID); err != nil {
		return 0, err
	}

	id, _, err := internalUserID(ctx, q, userID)

	return id, err
}

// Placements and membership
// =========================

/*
PlacementOf returns the current placement of a node. Returns false if the
node is not referenced by any fact. A user node resolves to its own internal
id without a graph.
*/
func (gm *Manager) PlacementOf(ctx context.Context, node string) (data.Placement, bool, error) {
	q := graphstorage.Bind(gm.gs)

	if data.IsUserID(node) {
		id, ok, err := internalUserID(ctx, q, node)
		return data.Placement{FactBox: id}, ok, err
	}

	return nodePlacement(ctx, q, node)
}

/*
IsTerm checks if a given node has been declared as a term.
*/
func (gm *Manager) IsTerm(ctx context.Context, node string) (bool, error) {
	return isTerm(ctx, graphstorage.Bind(gm.gs), node)
}

/*
IsMember checks if a given user can see facts in a given placement. Everybody
can see the term box. A private graph is only visible to its owner.
*/
func (gm *Manager) IsMember(ctx context.Context, userID string, p data.Placement) (bool, error) {

	if p.IsTerm() {
		return true, nil
	} else if p.FactBox == data.DeactivatedFactBox {
		return false, nil
	}

	q := graphstorage.Bind(gm.gs)

	uid, ok, err := internalUserID(ctx, q, userID)
	if !ok || err != nil {
		return false, err
	}

	if p.IsGraph() {
		return p.Owner() == uid, nil
	}

	var count int

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users_fact_boxes WHERE fact_box_id = ? AND user_id = ?",
		p.FactBox, uid).Scan(&count)

	return count > 0, err
}

/*
Members returns the ids of all users who can see facts in a given placement.
The term box has no explicit members.
*/
func (gm *Manager) Members(ctx context.Context, p data.Placement) ([]string, error) {

	if p.IsTerm() || p.FactBox == data.DeactivatedFactBox {
		return nil, nil
	}

	if p.IsGraph() {
		return gm.UserIDs(ctx, []int64{p.Owner()})
	}

	rows, err := graphstorage.Bind(gm.gs).QueryContext(ctx,
		`SELECT u.id FROM users u JOIN users_fact_boxes b ON b.user_id = u._id
			WHERE b.fact_box_id = ? ORDER BY u._id`, p.FactBox)
	if err != nil {
		return nil, err
	}

	return scanStrings(rows)
}

func isTerm(ctx context.Context, q graphstorage.Querier, node string) (bool, error) {
	var count int

	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts WHERE subject = ? AND predicate = ?",
		node, data.PredicateIsATermFor).Scan(&count)

	return count > 0, err
}

/*
nodePlacement looks up the placement of a non-user node. Terms are always in
the term box. Other nodes take the placement of any live fact which
references them. Placements outside the term box are preferred since a term
subject pulls its objects into the term box.
*/
func nodePlacement(ctx context.Context, q graphstorage.Querier, node string) (data.Placement, bool, error) {
	var box int64
	var graph sql.NullInt64

	if ok, err := isTerm(ctx, q, node); ok || err != nil {
		return data.TermPlacement, ok, err
	}

	err := q.QueryRowContext(ctx,
		`SELECT fact_box_id, graph_id FROM facts
			WHERE (subject = ? OR object = ?) AND fact_box_id <> ?
			ORDER BY CASE WHEN fact_box_id = 0 THEN 1 ELSE 0 END LIMIT 1`,
		node, node, data.DeactivatedFactBox).Scan(&box, &graph)

	if err == sql.ErrNoRows {
		return data.Placement{}, false, nil
	} else if err != nil {
		return data.Placement{}, false, err
	}

	return data.Placement{FactBox: box, Graph: graph.Int64}, true, nil
}

// Helper functions
// ================

/*
placeholders returns a comma separated list of n placeholders.
*/
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}

	buf := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '?')
	}

	return string(buf)
}

/*
scanStrings reads a single string column from all rows.
*/
func scanStrings(rows *sql.Rows) ([]string, error) {
	var ret []string

	defer rows.Close()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}

	return ret, rows.Err()
}

/*
nullGraph converts a graph id into a nullable database value.
*/
func nullGraph(graph int64) sql.NullInt64 {
	return sql.NullInt64{Int64: graph, Valid: graph != 0}
}
