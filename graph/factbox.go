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
	"fmt"

	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
allocation places facts for an acting user inside a single transaction.
*/
type allocation struct {
	gm       *Manager
	tx       graphstorage.Querier
	actor    string         // External id of the acting user
	actorUID int64          // Internal id of the acting user
	events   []pendingEvent // Events which are raised after commit
}

/*
place decides the placement of a new fact. Partitions of subject and object
are merged as needed so both end up in the same placement.
*/
func (a *allocation) place(ctx context.Context, f data.Fact) (data.Placement, error) {

	if f.Predicate == data.PredicateIsATermFor {
		return data.TermPlacement, nil
	}

	subjectIsUser := data.IsUserID(f.Subject)
	objectIsUser := data.IsUserID(f.Object)

	if subjectIsUser && objectIsUser {
		return data.Placement{}, &util.GraphError{Type: util.ErrPlacementInconsistency,
			Detail: fmt.Sprintf("User %v can not be linked to user %v", f.Subject, f.Object)}
	}

	if subjectIsUser {
		return a.placeUserSubject(ctx, f)
	} else if objectIsUser {
		return a.placeUserObject(ctx, f)
	}

	sp, err := a.placementOrNewGraph(ctx, f.Subject)
	if err != nil {
		return sp, err
	}

	// A term subject files the whole fact in the term box

	if sp.IsTerm() {
		return data.TermPlacement, nil
	}

	op, err := a.placementOrNewGraph(ctx, f.Object)
	if err != nil {
		return op, err
	}

	// A term object does not pull the fact into the term box

	if op.IsTerm() {
		return sp, nil
	}

	return a.combine(ctx, sp, op)
}

/*
placeUserSubject places a fact whose subject is a user. The user becomes a
member of the partition of the object.
*/
func (a *allocation) placeUserSubject(ctx context.Context, f data.Fact) (data.Placement, error) {

	subjectUID, err := ensureUser(ctx, a.tx, f.Subject)
	if err != nil {
		return data.Placement{}, err
	}

	op, err := a.placementOrNewGraph(ctx, f.Object)
	if err != nil {
		return op, err
	}

	switch {
	case op.IsTerm():
		return op, nil

	case op.IsSharedBox():
		return op, a.addMember(ctx, op.FactBox, subjectUID)

	case op.Owner() == subjectUID:
		return op, nil
	}

	return a.promoteToNewBox(ctx, []data.Placement{op}, subjectUID)
}

/*
placeUserObject places a fact whose object is a user. Only the acting user
may be referenced. The acting user becomes a member of the partition of
the subject.
*/
func (a *allocation) placeUserObject(ctx context.Context, f data.Fact) (data.Placement, error) {

	if f.Object != a.actor {
		return data.Placement{}, &util.GraphError{Type: util.ErrPlacementInconsistency,
			Detail: fmt.Sprintf("User %v can not reference user %v", a.actor, f.Object)}
	}

	sp, err := a.placementOrNewGraph(ctx, f.Subject)
	if err != nil {
		return sp, err
	}

	switch {
	case sp.IsTerm():
		return sp, nil

	case sp.IsSharedBox():
		return sp, a.addMember(ctx, sp.FactBox, a.actorUID)

	case sp.Owner() == a.actorUID:
		return sp, nil
	}

	return a.promoteToNewBox(ctx, []data.Placement{sp}, a.actorUID)
}

/*
combine merges the partitions of two non-term placements and returns the
resulting placement.
*/
func (a *allocation) combine(ctx context.Context, sp, op data.Placement) (data.Placement, error) {

	if sp == op {
		return sp, nil
	}

	switch {
	case sp.IsGraph() && op.IsGraph():

		if sp.Owner() == op.Owner() {
			return a.mergeGraphs(ctx, sp, op)
		}

		return a.promoteToNewBox(ctx, []data.Placement{sp, op})

	case sp.IsGraph():
		return a.promoteIntoBox(ctx, sp, op.FactBox)

	case op.IsGraph():
		return a.promoteIntoBox(ctx, op, sp.FactBox)
	}

	return a.mergeBoxes(ctx, sp.FactBox, op.FactBox)
}

/*
placementOrNewGraph looks up the placement of a node. An unknown node gets a
fresh private graph of the acting user.
*/
func (a *allocation) placementOrNewGraph(ctx context.Context, node string) (data.Placement, error) {
	p, ok, err := nodePlacement(ctx, a.tx, node)

	if err == nil && !ok {
		var graph int64

		graph, err = a.gm.gs.Dialect().NextSequenceValue(ctx, a.tx, graphstorage.SequenceGraphID)
		p = data.Placement{FactBox: a.actorUID, Graph: graph}
	}

	if err == nil && p.FactBox == data.DeactivatedFactBox {
		err = &util.GraphError{Type: util.ErrPlacementInconsistency,
			Detail: fmt.Sprintf("Node %v is deactivated", node)}
	}

	return p, err
}

/*
mergeGraphs merges two graphs of the same owner. The graph with the lower id
survives.
*/
func (a *allocation) mergeGraphs(ctx context.Context, p1, p2 data.Placement) (data.Placement, error) {
	keep, drop := p1, p2
	if drop.Graph < keep.Graph {
		keep, drop = drop, keep
	}

	_, err := a.tx.ExecContext(ctx,
		"UPDATE facts SET graph_id = ? WHERE fact_box_id = ? AND graph_id = ?",
		keep.Graph, drop.Owner(), drop.Graph)

	return keep, err
}

/*
promoteToNewBox moves a list of graphs into a fresh FactBox. The owners of
the graphs and all given extra users become members.
*/
func (a *allocation) promoteToNewBox(ctx context.Context, graphs []data.Placement, members ...int64) (data.Placement, error) {
	box, err := a.gm.gs.Dialect().NextSequenceValue(ctx, a.tx, graphstorage.SequenceFactBoxID)

	for _, g := range graphs {
		if err == nil {
			_, err = a.promoteIntoBox(ctx, g, box)
		}
	}

	for _, m := range members {
		if err == nil {
			err = a.addMember(ctx, box, m)
		}
	}

	return data.Placement{FactBox: box}, err
}

/*
promoteIntoBox moves all facts of a private graph into a shared FactBox. The
owner of the graph becomes a member of the FactBox.
*/
func (a *allocation) promoteIntoBox(ctx context.Context, graph data.Placement, box int64) (data.Placement, error) {
	ret := data.Placement{FactBox: box}

	if box <= data.TermFactBox {
		return ret, &util.GraphError{Type: util.ErrPlacementInconsistency,
			Detail: fmt.Sprintf("Can not move %v into box %v", graph, box)}
	}

	if _, err := a.tx.ExecContext(ctx,
		"UPDATE facts SET fact_box_id = ?, graph_id = NULL WHERE fact_box_id = ? AND graph_id = ?",
		box, graph.Owner(), graph.Graph); err != nil {
		return ret, err
	}

	a.events = append(a.events, pendingEvent{EventGraphPromoted, []interface{}{graph, box}})

	return ret, a.addMember(ctx, box, graph.Owner())
}

/*
mergeBoxes merges two shared FactBoxes. The box with the lower id survives
and receives all facts and members of the other box.
*/
func (a *allocation) mergeBoxes(ctx context.Context, box1, box2 int64) (data.Placement, error) {
	keep, drop := box1, box2
	if drop < keep {
		keep, drop = drop, keep
	}

	if keep <= data.TermFactBox {
		return data.Placement{}, &util.GraphError{Type: util.ErrPlacementInconsistency,
			Detail: fmt.Sprintf("Can not merge box %v into box %v", drop, keep)}
	}

	for _, stmt := range []string{
		"UPDATE facts SET fact_box_id = ? WHERE fact_box_id = ? AND graph_id IS NULL",
		`INSERT INTO users_fact_boxes (fact_box_id, user_id)
			SELECT CAST(? AS BIGINT), user_id FROM users_fact_boxes WHERE fact_box_id = ?
			ON CONFLICT DO NOTHING`,
	} {
		if _, err := a.tx.ExecContext(ctx, stmt, keep, drop); err != nil {
			return data.Placement{}, err
		}
	}

	if _, err := a.tx.ExecContext(ctx,
		"DELETE FROM users_fact_boxes WHERE fact_box_id = ?", drop); err != nil {
		return data.Placement{}, err
	}

	a.events = append(a.events, pendingEvent{EventFactBoxMerged, []interface{}{keep, drop}})

	return data.Placement{FactBox: keep}, nil
}

/*
addMember makes a user member of a FactBox.
*/
func (a *allocation) addMember(ctx context.Context, box int64, userUID int64) error {
	_, err := a.tx.ExecContext(ctx,
		"INSERT INTO users_fact_boxes (fact_box_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		box, userUID)
	return err
}
