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

	"devt.de/krotik/common/datautil"
	"github.com/prometheus/client_golang/prometheus"
)

/*
AllUsers is the user id which invalidates the cache entries of all users.
*/
const AllUsers = "*"

var cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linkedrecords",
	Name:      "auth_cache_lookups_total",
	Help:      "Number of authorization cache lookups by result (hit, miss).",
}, []string{"result"})

func init() {
	prometheus.MustRegister(cacheLookups)
}

/*
Cache is an advisory per-user cache of positive authorization decisions.
A miss always leads to an authoritative check. Entries of a user are
dropped when facts which may revoke access are deleted.

Every invalidation increases a generation counter. A decision can only be
added if no invalidation happened since the check which produced it started.
*/
type Cache struct {
	maxSize     uint64
	maxAge      int64
	entries     *datautil.MapCache // Map of user id to *userEntry
	generations map[string]uint64  // Invalidation counters per user
	generation  uint64             // Invalidation counter for all users
	lock        *sync.RWMutex      // Lock for entries and generations
	broadcaster Broadcaster        // Broadcaster for invalidations (may be nil)
}

/*
userEntry holds the cached decisions of a single user.
*/
type userEntry struct {
	nodes map[string]map[string]bool // Map of node to set of requirement keys
	lock  *sync.RWMutex
}

/*
NewCache creates a new authorization cache. The cache holds at most maxSize
users (0 for no limit) and entries expire after maxAge seconds (0 for no
expiry). Invalidations are published and received through the given
broadcaster which may be nil.
*/
func NewCache(maxSize uint64, maxAge int64, broadcaster Broadcaster) *Cache {
	c := &Cache{maxSize, maxAge, datautil.NewMapCache(maxSize, maxAge),
		make(map[string]uint64), 0, &sync.RWMutex{}, broadcaster}

	if broadcaster != nil {
		broadcaster.Subscribe(c.invalidateLocal)
	}

	return c
}

/*
IsCached checks if a positive decision for a user, node and requirement key
is known.
*/
func (c *Cache) IsCached(userID string, node string, key string) bool {
	c.lock.RLock()
	v, ok := c.entries.Get(userID)
	c.lock.RUnlock()

	if ok {
		e := v.(*userEntry)

		e.lock.RLock()
		ok = e.nodes[node][key]
		e.lock.RUnlock()
	}

	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}

	return ok
}

/*
Generation returns the current invalidation generation of a user. The value
changes whenever the decisions of the user are invalidated.
*/
func (c *Cache) Generation(userID string) uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.generation + c.generations[userID]
}

/*
Add records a positive decision for a user, node and requirement key.
*/
func (c *Cache) Add(userID string, node string, key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.add(userID, node, key)
}

/*
AddIfCurrent records a positive decision for a user, node and requirement
key if the decisions of the user were not invalidated since the given
generation was taken. Returns if the decision was recorded.
*/
func (c *Cache) AddIfCurrent(userID string, node string, key string, generation uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.generation+c.generations[userID] != generation {
		return false
	}

	c.add(userID, node, key)

	return true
}

/*
add records a decision. The caller must hold the write lock.
*/
func (c *Cache) add(userID string, node string, key string) {
	v, ok := c.entries.Get(userID)
	if !ok {
		v = &userEntry{make(map[string]map[string]bool), &sync.RWMutex{}}
		c.entries.Put(userID, v)
	}

	e := v.(*userEntry)

	e.lock.Lock()
	defer e.lock.Unlock()

	keys, ok := e.nodes[node]
	if !ok {
		keys = make(map[string]bool)
		e.nodes[node] = keys
	}

	keys[key] = true
}

/*
Invalidate drops all cached decisions of a user in this process and in all
other processes which are connected through the broadcaster. Use AllUsers
to drop all cached decisions.
*/
func (c *Cache) Invalidate(userID string) {
	c.invalidateLocal(userID)

	if c.broadcaster != nil {
		c.broadcaster.Publish(userID)
	}
}

/*
invalidateLocal drops the cached decisions of a user in this process.
*/
func (c *Cache) invalidateLocal(userID string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if userID == AllUsers {
		c.generation++
		c.entries = datautil.NewMapCache(c.maxSize, c.maxAge)
		return
	}

	c.generations[userID]++
	c.entries.Remove(userID)
}
