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
	"context"

	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
)

/*
CacheInvalidationRule is a graph rule which drops cached decisions when a
fact that may have granted access is deleted. Additions never invalidate
the cache since a cache miss always leads to a full check.
*/
type CacheInvalidationRule struct {
	Cache *Cache
}

/*
Name returns the name of the rule.
*/
func (r *CacheInvalidationRule) Name() string {
	return "auth.invalidatecache"
}

/*
Handles returns a list of events which are handled by this rule.
*/
func (r *CacheInvalidationRule) Handles() []int {
	return []int{graph.EventFactDeleted, graph.EventFactsReset}
}

/*
Handle handles an event.
*/
func (r *CacheInvalidationRule) Handle(gm *graph.Manager, event int, ed ...interface{}) error {

	if event == graph.EventFactsReset {
		r.Cache.Invalidate(AllUsers)
		return nil
	}

	sf := ed[0].(data.StoredFact)

	if !data.IsReservedPredicate(sf.Predicate) {
		return nil
	}

	if data.IsUserID(sf.Subject) {
		r.Cache.Invalidate(sf.Subject)
		return nil
	}

	// Roles derived from memberships may have changed for everybody who
	// can see the box of the fact

	members, err := gm.Members(context.Background(), sf.Placement)

	for _, m := range members {
		r.Cache.Invalidate(m)
	}

	return err
}
