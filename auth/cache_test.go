/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package auth

import (
	"sync"
	"testing"

	"devt.de/krotik/linkedrecords/graph/data"
)

func TestCache(t *testing.T) {
	c := NewCache(2, 0, nil)

	if c.IsCached("us-a", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}

	c.Add("us-a", "doc1", "r")
	c.Add("us-a", "doc2", "r")
	c.Add("us-b", "doc1", "w")

	if !c.IsCached("us-a", "doc1", "r") || c.IsCached("us-a", "doc1", "w") ||
		!c.IsCached("us-b", "doc1", "w") || c.IsCached("us-b", "doc2", "r") {
		t.Error("Unexpected result")
		return
	}

	// The cache holds only two users

	c.Add("us-c", "doc1", "r")

	cached := 0
	for _, u := range []string{"us-a", "us-b", "us-c"} {
		if c.IsCached(u, "doc1", "r") || c.IsCached(u, "doc1", "w") {
			cached++
		}
	}

	if cached != 2 || !c.IsCached("us-c", "doc1", "r") {
		t.Error("Unexpected result:", cached)
		return
	}

	c.Invalidate("us-b")
	c.Invalidate("us-a")

	if c.IsCached("us-b", "doc1", "w") || !c.IsCached("us-c", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}

	c.Add("us-b", "doc1", "w")
	c.Invalidate(AllUsers)

	if c.IsCached("us-b", "doc1", "w") || c.IsCached("us-c", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}
}

func TestCacheGenerations(t *testing.T) {
	lb := NewLocalBroadcaster()
	defer lb.Close()

	c := NewCache(0, 0, lb)

	gen := c.Generation("us-a")

	if !c.AddIfCurrent("us-a", "doc1", "r", gen) || !c.IsCached("us-a", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}

	// A revocation between the check and the update of the cache wins

	gen = c.Generation("us-a")
	genB := c.Generation("us-b")

	c.Invalidate("us-a")

	if c.AddIfCurrent("us-a", "doc2", "r", gen) || c.IsCached("us-a", "doc2", "r") {
		t.Error("Stale decision was cached")
		return
	}

	// Other users are not affected

	if !c.AddIfCurrent("us-b", "doc2", "r", genB) {
		t.Error("Unexpected result")
		return
	}

	// Invalidating all users changes every generation

	gen = c.Generation("us-a")
	genB = c.Generation("us-b")

	c.Invalidate(AllUsers)

	if c.AddIfCurrent("us-a", "doc1", "r", gen) || c.AddIfCurrent("us-b", "doc1", "r", genB) {
		t.Error("Stale decision was cached")
		return
	}

	if gen == c.Generation("us-a") || genB == c.Generation("us-b") {
		t.Error("Unexpected result:", gen, genB)
		return
	}

	// Invalidations received from other processes count as well

	gen = c.Generation("us-a")

	lb.Publish("us-a")

	if c.AddIfCurrent("us-a", "doc1", "r", gen) {
		t.Error("Stale decision was cached")
		return
	}
}

func TestCacheBroadcast(t *testing.T) {
	lb := NewLocalBroadcaster()
	defer lb.Close()

	c1 := NewCache(0, 0, lb)
	c2 := NewCache(0, 0, lb)

	c1.Add("us-a", "doc1", "r")
	c2.Add("us-a", "doc1", "r")
	c2.Add("us-b", "doc1", "r")

	c1.Invalidate("us-a")

	if c1.IsCached("us-a", "doc1", "r") || c2.IsCached("us-a", "doc1", "r") ||
		!c2.IsCached("us-b", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}

	// An unreachable Redis server never fails an invalidation

	rb := NewRedisBroadcaster("127.0.0.1:1", "test")
	c3 := NewCache(0, 0, rb)

	c3.Add("us-a", "doc1", "r")
	c3.Invalidate("us-a")

	if c3.IsCached("us-a", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}

	rb.Close()
}

func TestCacheConcurrency(t *testing.T) {
	c := NewCache(0, 0, nil)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add("us-a", "doc1", "r")
				c.IsCached("us-a", "doc1", "r")
			}
		}()

		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Invalidate("us-a")
			}
		}()
	}

	wg.Wait()

	c.Invalidate("us-a")

	if c.IsCached("us-a", "doc1", "r") {
		t.Error("Unexpected result")
		return
	}
}

func TestCacheInvalidationRule(t *testing.T) {
	gm := newTestGraphManager()
	c := NewCache(0, 0, nil)
	e := NewEngine(gm, c)

	gm.SetGraphRule(&CacheInvalidationRule{c})

	createTeamSetup(t, gm)

	checkAuth(t, e, "us-b", "doc1", ReadPayload, true)
	checkAuth(t, e, "us-a", "doc1", ReadPayload, true)

	if !c.IsCached("us-b", "doc1", ReadPayload.Key()) || !c.IsCached("us-a", "doc1", ReadPayload.Key()) {
		t.Error("Unexpected result")
		return
	}

	// Normal facts do not invalidate

	saveFacts(t, gm, "us-a", [3]string{"doc1", "title", "t1"})
	deleteFacts(t, gm, "us-a", [3]string{"doc1", "title", "t1"})

	if !c.IsCached("us-b", "doc1", ReadPayload.Key()) {
		t.Error("Unexpected result")
		return
	}

	// Removing the grant of the team invalidates all members of the box

	deleteFacts(t, gm, "us-a", [3]string{"team", data.PredicateCanRead, "doc1"})

	if c.IsCached("us-b", "doc1", ReadPayload.Key()) || c.IsCached("us-a", "doc1", ReadPayload.Key()) {
		t.Error("Unexpected result")
		return
	}

	checkAuth(t, e, "us-b", "doc1", ReadPayload, false)

	// Removing a membership invalidates the user

	saveFacts(t, gm, "us-a", [3]string{"team", data.PredicateCanRead, "doc1"})
	checkAuth(t, e, "us-b", "doc1", ReadPayload, true)
	checkAuth(t, e, "us-a", "doc1", ReadPayload, true)

	deleteFacts(t, gm, "us-a", [3]string{"us-b", data.PredicateIsMemberOf, "team"})

	if c.IsCached("us-b", "doc1", ReadPayload.Key()) || !c.IsCached("us-a", "doc1", ReadPayload.Key()) {
		t.Error("Unexpected result")
		return
	}

	checkAuth(t, e, "us-b", "doc1", ReadPayload, false)

	// A reset drops everything

	if err := gm.Reset(ctx); err != nil {
		t.Error(err)
		return
	}

	if c.IsCached("us-a", "doc1", ReadPayload.Key()) {
		t.Error("Unexpected result")
		return
	}
}
