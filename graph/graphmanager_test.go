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
	"sort"
	"strings"
	"sync"
	"testing"

	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
)

var ctx = context.Background()

/*
newTestGraphManager creates a graph manager on a fresh memory storage.
*/
func newTestGraphManager() *Manager {
	return NewGraphManager(graphstorage.NewMemoryGraphStorage("testgraph"))
}

/*
saveFacts stores a list of triples for an actor and fails the test on error.
*/
func saveFacts(t *testing.T, gm *Manager, actor string, triples ...[3]string) []data.StoredFact {
	var facts []data.Fact

	for _, tr := range triples {
		facts = append(facts, data.NewFact(tr[0], tr[1], tr[2]))
	}

	res, err := gm.SaveAll(ctx, facts, actor)
	if err != nil {
		t.Fatal(err)
	}

	return res
}

/*
placementOf returns the placement of a stored fact.
*/
func placementOf(t *testing.T, gm *Manager, s, p, o string) data.Placement {
	pl, ok, err := factPlacement(ctx, graphstorage.Bind(gm.gs), data.NewFact(s, p, o))
	if !ok || err != nil {
		t.Fatal("Fact not found:", s, p, o, err)
	}
	return pl
}

func subjects(facts []data.StoredFact) string {
	var ret []string
	for _, f := range facts {
		ret = append(ret, f.Subject)
	}
	return strings.Join(ret, " ")
}

func TestTransitiveClosure(t *testing.T) {
	gm := newTestGraphManager()

	saveFacts(t, gm, "us-a",
		[3]string{"Document", data.PredicateIsATermFor, "A document"},
		[3]string{"openTodo", "isA", "todo"},
		[3]string{"importantOpenTodo", "isA", "openTodo"},
		[3]string{"t1", "isA", "importantOpenTodo"})

	res, err := gm.SubjectClosure(ctx, "isA", "todo")
	if err != nil || fmt.Sprint(res) != "[importantOpenTodo openTodo t1]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	// The transitive marker is accepted

	res, err = gm.SubjectClosure(ctx, "isA*", "todo")
	if err != nil || fmt.Sprint(res) != "[importantOpenTodo openTodo t1]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	facts, err := gm.FindAll(ctx, FactQuery{Subject: []NodeMatcher{Reachable("isA", "todo")}})
	if err != nil || subjects(facts) != "importantOpenTodo openTodo t1" {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Cycles terminate

	saveFacts(t, gm, "us-a", [3]string{"todo", "isA", "t1"})

	res, err = gm.SubjectClosure(ctx, "isA", "todo")
	if err != nil || fmt.Sprint(res) != "[importantOpenTodo openTodo t1 todo]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	res, err = gm.ObjectsOf(ctx, "t1", "isA", false)
	if err != nil || fmt.Sprint(res) != "[importantOpenTodo]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	res, err = gm.ObjectsOf(ctx, "t1", "isA*", true)
	if err != nil || fmt.Sprint(res) != "[importantOpenTodo openTodo t1 todo]" {
		t.Error("Unexpected result:", res, err)
		return
	}
}

func TestFindAllFilters(t *testing.T) {
	gm := newTestGraphManager()

	saveFacts(t, gm, "us-a",
		[3]string{"t1", "isA", "todo"},
		[3]string{"t1", "tag", "urgent"},
		[3]string{"t2", "isA", "todo"},
		[3]string{"t3", "tag", "urgent"})

	// Multiple subject entries are intersected

	facts, err := gm.FindAll(ctx, FactQuery{Subject: []NodeMatcher{
		Reachable("isA", "todo"), Reachable("tag", "urgent")}})
	if err != nil || len(facts) != 2 {
		t.Error("Unexpected result:", facts, err)
		return
	}

	if subjects(facts) != "t1 t1" {
		t.Error("Unexpected result:", facts)
		return
	}

	// Literal and pattern

	facts, err = gm.FindAll(ctx, FactQuery{
		Subject:   []NodeMatcher{Literal("t2"), Reachable("isA", "todo")},
		Predicate: []string{"isA"},
	})
	if err != nil || len(facts) != 1 || facts[0].Fact != data.NewFact("t2", "isA", "todo") {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Object filter

	facts, err = gm.FindAll(ctx, FactQuery{Object: []NodeMatcher{Literal("urgent")}})
	if err != nil || subjects(facts) != "t1 t3" {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Predicates are intersected as well

	facts, err = gm.FindAll(ctx, FactQuery{Predicate: []string{"isA", "tag"}})
	if err != nil || len(facts) != 0 {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Empty intersection

	facts, err = gm.FindAll(ctx, FactQuery{Subject: []NodeMatcher{Literal("t2"), Literal("t3")}})
	if err != nil || len(facts) != 0 {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Matching single facts

	match := func(f data.Fact, fq FactQuery, expected bool) {
		t.Helper()

		if ok, err := gm.Match(ctx, f, fq); ok != expected || err != nil {
			t.Errorf("Unexpected result for %v with %v: %v %v", f, fq, ok, err)
		}
	}

	t1Todo := data.NewFact("t1", "isA", "todo")

	match(t1Todo, FactQuery{}, true)
	match(t1Todo, FactQuery{Subject: []NodeMatcher{Literal("t1")}}, true)
	match(t1Todo, FactQuery{Subject: []NodeMatcher{Literal("t2")}}, false)
	match(t1Todo, FactQuery{Predicate: []string{"isA"}, Object: []NodeMatcher{Literal("todo")}}, true)
	match(t1Todo, FactQuery{Predicate: []string{"tag"}}, false)
	match(t1Todo, FactQuery{Object: []NodeMatcher{Literal("urgent")}}, false)

	// Patterns are resolved against the stored facts

	match(t1Todo, FactQuery{Subject: []NodeMatcher{Reachable("tag", "urgent")}}, true)
	match(t1Todo, FactQuery{Subject: []NodeMatcher{Literal("t1"), Reachable("tag", "urgent")}}, true)
	match(data.NewFact("t2", "isA", "todo"), FactQuery{Subject: []NodeMatcher{Reachable("tag", "urgent")}}, false)

	// The fact itself does not need to be stored

	match(data.NewFact("t3", "isA", "todo"), FactQuery{
		Subject: []NodeMatcher{Reachable("tag", "urgent")}, Predicate: []string{"isA"}}, true)

	if ok, err := gm.MatchAny(ctx, t1Todo, []FactQuery{
		{Subject: []NodeMatcher{Literal("t4")}},
		{Predicate: []string{"isA"}, Subject: []NodeMatcher{Reachable("isA", "todo")}},
	}); !ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := gm.MatchAny(ctx, t1Todo, []FactQuery{
		{Subject: []NodeMatcher{Literal("t4")}},
		{Predicate: []string{"tag"}},
	}); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := gm.MatchAny(ctx, t1Todo, nil); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}
}

func TestSaveIdempotence(t *testing.T) {
	gm := newTestGraphManager()

	if ok, err := gm.Save(ctx, data.NewFact("kv-1", "isA", "Document"), "us-a"); !ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := gm.Save(ctx, data.NewFact("kv-1", "isA", "Document"), "us-a"); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	facts, _ := gm.FindAll(ctx, FactQuery{})
	if len(facts) != 1 {
		t.Error("Unexpected result:", facts)
		return
	}

	if _, err := gm.Save(ctx, data.NewFact("kv-1", "", "Document"), "us-a"); !util.IsError(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := gm.Save(ctx, data.NewFact("kv-1", "isA", "Document"), ""); !util.IsError(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestTermPlacement(t *testing.T) {
	gm := newTestGraphManager()

	saveFacts(t, gm, "us-a",
		[3]string{"Document", data.PredicateIsATermFor, "A document"},
		[3]string{"kv-1", "isA", "Document"})

	saveFacts(t, gm, "us-b",
		[3]string{"Document", "hasField", "title"},
		[3]string{"kv-2", "isA", "Document"})

	if p := placementOf(t, gm, "Document", data.PredicateIsATermFor, "A document"); !p.IsTerm() {
		t.Error("Unexpected result:", p)
		return
	}

	// Facts with a term subject are filed in the term box regardless of actor

	if p := placementOf(t, gm, "Document", "hasField", "title"); !p.IsTerm() {
		t.Error("Unexpected result:", p)
		return
	}

	// Term objects do not pull facts into the term box

	p1 := placementOf(t, gm, "kv-1", "isA", "Document")
	p2 := placementOf(t, gm, "kv-2", "isA", "Document")

	if !p1.IsGraph() || !p2.IsGraph() || p1.Owner() == p2.Owner() {
		t.Error("Unexpected result:", p1, p2)
		return
	}

	if ok, _ := gm.IsTerm(ctx, "Document"); !ok {
		t.Error("Document should be a term")
		return
	}

	if p, ok, err := gm.PlacementOf(ctx, "Document"); !ok || err != nil || !p.IsTerm() {
		t.Error("Unexpected result:", p, ok, err)
		return
	}

	// Terms are visible to everybody

	facts, err := gm.FindAll(ctx, FactQuery{Subject: []NodeMatcher{Literal("Document")}, User: "us-c"})
	if err != nil || len(facts) != 2 {
		t.Error("Unexpected result:", facts, err)
		return
	}
}

func TestConnectivityAndIsolation(t *testing.T) {
	gm := newTestGraphManager()

	saveFacts(t, gm, "us-a",
		[3]string{"Document", data.PredicateIsATermFor, "A document"},
		[3]string{"kv-1", "isA", "Document"})
	saveFacts(t, gm, "us-b", [3]string{"kv-2", "isA", "Document"})

	p1 := placementOf(t, gm, "kv-1", "isA", "Document")

	// Both nodes of the fact share the placement

	if p, _, _ := gm.PlacementOf(ctx, "kv-1"); p != p1 {
		t.Error("Unexpected result:", p, p1)
		return
	}

	// B does not see the facts of A

	facts, err := gm.FindAll(ctx, FactQuery{Subject: []NodeMatcher{Literal("kv-1")}, User: "us-b"})
	if err != nil || len(facts) != 0 {
		t.Error("Unexpected result:", facts, err)
		return
	}

	facts, err = gm.FindAll(ctx, FactQuery{User: "us-b"})
	if err != nil || subjects(facts) != "Document kv-2" {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Unknown users see only terms

	facts, err = gm.FindAll(ctx, FactQuery{User: "us-x"})
	if err != nil || subjects(facts) != "Document" {
		t.Error("Unexpected result:", facts, err)
		return
	}

	// Connecting the nodes of two owners creates a shared box

	saveFacts(t, gm, "us-a", [3]string{"kv-1", "references", "kv-2"})

	p1 = placementOf(t, gm, "kv-1", "isA", "Document")
	p2 := placementOf(t, gm, "kv-2", "isA", "Document")
	p3 := placementOf(t, gm, "kv-1", "references", "kv-2")

	if !p1.IsSharedBox() || p1 != p2 || p2 != p3 {
		t.Error("Unexpected result:", p1, p2, p3)
		return
	}

	members, err := gm.Members(ctx, p1)
	if err != nil || fmt.Sprint(members) != "[us-a us-b]" {
		t.Error("Unexpected result:", members, err)
		return
	}

	facts, err = gm.FindAll(ctx, FactQuery{User: "us-b"})
	if err != nil || subjects(facts) != "Document kv-1 kv-1 kv-2" {
		t.Error("Unexpected result:", facts, err)
		return
	}

	if ok, err := gm.IsMember(ctx, "us-b", p1); !ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := gm.IsMember(ctx, "us-c", p1); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}
}

func TestGraphMerges(t *testing.T) {
	gm := newTestGraphManager()

	saveFacts(t, gm, "us-a",
		[3]string{"kv-1", "title", "t1"},
		[3]string{"kv-2", "title", "t2"})

	p1 := placementOf(t, gm, "kv-1", "title", "t1")
	p2 := placementOf(t, gm, "kv-2", "title", "t2")

	if p1 == p2 || p1.Owner() != p2.Owner() {
		t.Error("Unexpected result:", p1, p2)
		return
	}

	// Graphs of the same owner are merged into the graph with the lower id

	saveFacts(t, gm, "us-a", [3]string{"kv-2", "partOf", "kv-1"})

	p1 = placementOf(t, gm, "kv-1", "title", "t1")
	p2 = placementOf(t, gm, "kv-2", "title", "t2")

	if p1 != p2 || !p1.IsGraph() || p1.Graph != 1 {
		t.Error("Unexpected result:", p1, p2)
		return
	}

	if members, _ := gm.Members(ctx, p1); fmt.Sprint(members) != "[us-a]" {
		t.Error("Unexpected result:", members)
		return
	}
}

func TestBoxMerges(t *testing.T) {
	gm := newTestGraphManager()

	var events []string
	var lock sync.Mutex

	gm.SetGraphRule(&testRule{func(event int, ed ...interface{}) {
		lock.Lock()
		defer lock.Unlock()

		switch event {
		case EventFactBoxMerged:
			events = append(events, fmt.Sprintf("merged %v %v", ed[0], ed[1]))
		case EventGraphPromoted:
			events = append(events, fmt.Sprintf("promoted %v %v", ed[0], ed[1]))
		}
	}})

	// Box 1: kv-1 of A shared with B

	saveFacts(t, gm, "us-a",
		[3]string{"Document", data.PredicateIsATermFor, "A document"},
		[3]string{"kv-1", "isA", "Document"},
		[3]string{"us-b", data.PredicateCanAccess, "kv-1"})

	// Box 2: kv-3 of C shared with D

	saveFacts(t, gm, "us-c",
		[3]string{"kv-3", "isA", "Document"},
		[3]string{"us-d", data.PredicateCanRead, "kv-3"})

	pa := placementOf(t, gm, "kv-1", "isA", "Document")
	pc := placementOf(t, gm, "kv-3", "isA", "Document")

	if !pa.IsSharedBox() || !pc.IsSharedBox() || pa == pc {
		t.Error("Unexpected result:", pa, pc)
		return
	}

	if res := fmt.Sprint(events); res != "[promoted graph 1 of user 1 1 promoted graph 2 of user 3 2]" {
		t.Error("Unexpected result:", res)
		return
	}

	saveFacts(t, gm, "us-a", [3]string{"kv-1", "references", "kv-3"})

	pa = placementOf(t, gm, "kv-1", "isA", "Document")
	pc = placementOf(t, gm, "kv-3", "isA", "Document")

	if pa != pc || pa.FactBox != 1 {
		t.Error("Unexpected result:", pa, pc)
		return
	}

	if members, _ := gm.Members(ctx, pa); fmt.Sprint(members) != "[us-a us-b us-c us-d]" {
		t.Error("Unexpected result:", members)
		return
	}

	if members, _ := gm.Members(ctx, data.Placement{FactBox: 2}); len(members) != 0 {
		t.Error("Unexpected result:", members)
		return
	}

	if res := fmt.Sprint(events[2:]); res != "[merged 1 2]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestConcurrentMerges(t *testing.T) {
	gm := newTestGraphManager()

	users := []string{"us-a", "us-b", "us-c", "us-d"}
	errs := make(chan error, 80)

	var wg sync.WaitGroup

	// Each user links every fourth node of a chain so that all partitions
	// are connected in a random order

	for i, user := range users {
		wg.Add(1)

		go func(offset int, user string) {
			defer wg.Done()

			for k := offset; k < 80; k += len(users) {
				_, err := gm.SaveAll(ctx, []data.Fact{
					data.NewFact(fmt.Sprint("n", k), "next", fmt.Sprint("n", k+1)),
				}, user)

				if err != nil {
					errs <- err
				}
			}
		}(i, user)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
		return
	}

	facts, err := gm.FindAll(ctx, FactQuery{Predicate: []string{"next"}})
	if err != nil || len(facts) != 80 {
		t.Error("Unexpected result:", len(facts), err)
		return
	}

	placements := make(map[data.Placement]int)
	for _, f := range facts {
		placements[f.Placement]++
	}

	if len(placements) != 1 || !facts[0].IsSharedBox() {
		t.Error("Unexpected result:", placements)
		return
	}

	// The ends of the chain were first placed in private graphs of us-a and
	// us-d. Their owners became members when the graphs were promoted.

	members, err := gm.Members(ctx, facts[0].Placement)
	sort.Strings(members)

	if err != nil || len(members) < 2 || members[0] != "us-a" || members[len(members)-1] != "us-d" {
		t.Error("Unexpected result:", members, err)
		return
	}

	// No facts are left in other partitions

	var count int

	if err := graphstorage.Bind(gm.gs).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM facts WHERE fact_box_id <> ? OR graph_id IS NOT NULL",
		facts[0].FactBox).Scan(&count); err != nil || count != 0 {
		t.Error("Unexpected result:", count, err)
		return
	}
}

func TestUserPlacements(t *testing.T) {
	gm := newTestGraphManager()

	// A user subject referencing its own graph keeps the graph

	saveFacts(t, gm, "us-a",
		[3]string{"kv-1", "isA", "Document"},
		[3]string{"kv-1", data.PredicateWasCreatedBy, "us-a"},
		[3]string{"us-a", "bookmarked", "kv-1"})

	p := placementOf(t, gm, "us-a", "bookmarked", "kv-1")
	if !p.IsGraph() || p != placementOf(t, gm, "kv-1", data.PredicateWasCreatedBy, "us-a") {
		t.Error("Unexpected result:", p)
		return
	}

	// Group membership moves the group into a shared box

	saveFacts(t, gm, "us-a",
		[3]string{"us-a", data.PredicateIsMemberOf, "team"},
		[3]string{"us-b", data.PredicateIsMemberOf, "team"})

	p = placementOf(t, gm, "us-b", data.PredicateIsMemberOf, "team")
	if !p.IsSharedBox() {
		t.Error("Unexpected result:", p)
		return
	}

	if members, _ := gm.Members(ctx, p); fmt.Sprint(members) != "[us-a us-b]" {
		t.Error("Unexpected result:", members)
		return
	}

	// A user subject with an object in a shared box becomes a member

	saveFacts(t, gm, "us-a", [3]string{"us-c", data.PredicateIsMemberOf, "team"})

	if members, _ := gm.Members(ctx, p); fmt.Sprint(members) != "[us-a us-b us-c]" {
		t.Error("Unexpected result:", members)
		return
	}

	// The actor joins the shared box of a subject which references the actor

	saveFacts(t, gm, "us-d", [3]string{"team", "visitedBy", "us-d"})

	if members, _ := gm.Members(ctx, p); fmt.Sprint(members) != "[us-a us-b us-c us-d]" {
		t.Error("Unexpected result:", members)
		return
	}

	// User placement lookup

	if up, ok, err := gm.PlacementOf(ctx, "us-b"); !ok || err != nil || up.FactBox != 2 || up.IsGraph() {
		t.Error("Unexpected result:", up, ok, err)
		return
	}

	if _, ok, err := gm.PlacementOf(ctx, "us-x"); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}
}

func TestPlacementInconsistency(t *testing.T) {
	gm := newTestGraphManager()

	_, err := gm.Save(ctx, data.NewFact("us-b", "knows", "us-c"), "us-a")
	if !util.IsError(err, util.ErrPlacementInconsistency) {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = gm.Save(ctx, data.NewFact("kv-1", data.PredicateWasCreatedBy, "us-b"), "us-a")
	if !util.IsError(err, util.ErrPlacementInconsistency) {
		t.Error("Unexpected result:", err)
		return
	}

	// Nothing was written - the whole batch is rolled back

	_, err = gm.SaveAll(ctx, []data.Fact{
		data.NewFact("kv-1", "isA", "Document"),
		data.NewFact("kv-1", data.PredicateWasCreatedBy, "us-b"),
	}, "us-a")
	if !util.IsError(err, util.ErrPlacementInconsistency) {
		t.Error("Unexpected result:", err)
		return
	}

	if facts, _ := gm.FindAll(ctx, FactQuery{}); len(facts) != 0 {
		t.Error("Unexpected result:", facts)
		return
	}
}

func TestDeleteAndReset(t *testing.T) {
	gm := newTestGraphManager()

	var events []string
	var lock sync.Mutex

	gm.SetGraphRule(&testRule{func(event int, ed ...interface{}) {
		lock.Lock()
		defer lock.Unlock()

		switch event {
		case EventFactCreated:
			events = append(events, fmt.Sprintf("created %v %v", ed[0].(data.StoredFact).Fact, ed[1]))
		case EventFactDeleted:
			events = append(events, fmt.Sprintf("deleted %v %v", ed[0].(data.StoredFact).Fact, ed[1]))
		case EventFactsReset:
			events = append(events, "reset")
		}
	}})

	if res := fmt.Sprint(gm.GraphRules()); res != "[system.updatemetrics test.rule]" {
		t.Error("Unexpected result:", res)
		return
	}

	saveFacts(t, gm, "us-a",
		[3]string{"kv-1", "isA", "Document"},
		[3]string{"kv-1", "title", "kv-2"})

	deleted, err := gm.DeleteAll(ctx, []data.Fact{
		data.NewFact("kv-1", "title", "kv-2"),
		data.NewFact("kv-1", "title", "kv-3"),
	}, "us-a")

	if err != nil || len(deleted) != 1 || !deleted[0].IsGraph() {
		t.Error("Unexpected result:", deleted, err)
		return
	}

	if err := gm.Reset(ctx); err != nil {
		t.Error(err)
		return
	}

	if facts, _ := gm.FindAll(ctx, FactQuery{}); len(facts) != 0 {
		t.Error("Unexpected result:", facts)
		return
	}

	if res := strings.Join(events, "\n"); res != `
created [kv-1 isA Document] us-a
created [kv-1 title kv-2] us-a
deleted [kv-1 title kv-2] us-a
reset`[1:] {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestParseFactQuery(t *testing.T) {

	m, err := ParseNodeMatchers(`["kv-1", ["isA", "Document"]]`)
	if err != nil || fmt.Sprint(m) != "[kv-1 [isA Document]]" || m[0].IsPattern() || !m[1].IsPattern() {
		t.Error("Unexpected result:", m, err)
		return
	}

	m, err = ParseNodeMatchers(`"kv-1"`)
	if err != nil || fmt.Sprint(m) != "[kv-1]" {
		t.Error("Unexpected result:", m, err)
		return
	}

	if m, err = ParseNodeMatchers(""); err != nil || m != nil {
		t.Error("Unexpected result:", m, err)
		return
	}

	for _, invalid := range []string{`{}`, `[1]`, `[["isA"]]`, `[["isA", 1]]`, `[`} {
		if _, err := ParseNodeMatchers(invalid); !util.IsError(err, util.ErrInvalidQuery) {
			t.Error("Unexpected result:", invalid, err)
			return
		}
	}

	p, err := ParsePredicates(`["isA", "$canAccess"]`)
	if err != nil || fmt.Sprint(p) != "[isA $canAccess]" {
		t.Error("Unexpected result:", p, err)
		return
	}

	p, err = ParsePredicates(`"isA"`)
	if err != nil || fmt.Sprint(p) != "[isA]" {
		t.Error("Unexpected result:", p, err)
		return
	}

	if _, err = ParsePredicates(`[1]`); !util.IsError(err, util.ErrInvalidQuery) {
		t.Error("Unexpected result:", err)
		return
	}
}

/*
testRule forwards all events to a callback.
*/
type testRule struct {
	callback func(event int, ed ...interface{})
}

func (r *testRule) Name() string {
	return "test.rule"
}

func (r *testRule) Handles() []int {
	return []int{EventFactCreated, EventFactDeleted, EventFactBoxMerged, EventGraphPromoted, EventFactsReset}
}

func (r *testRule) Handle(gm *Manager, event int, ed ...interface{}) error {
	r.callback(event, ed...)
	return nil
}
