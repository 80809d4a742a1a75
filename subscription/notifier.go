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
Package subscription contains the live query subscription notifier.

Clients subscribe to a compound query on the channel

	query-sub:<user id>:<JSON compound query>

When a fact is created or deleted every subscription whose user can see the
FactBox of the fact and whose query references the predicate of the fact
receives the message

	{"type": "resultMightHaveChanged"}

The client is expected to run the query again. Notifications may be sent
when the result has not actually changed.
*/
package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/common/pools"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/query"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var logger = logutil.GetLogger("linkedrecords.subscription")

var pings = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "linkedrecords",
	Name:      "subscription_pings_total",
	Help:      "Number of result might have changed messages sent to subscribers.",
})

func init() {
	prometheus.MustRegister(pings)
}

/*
ChannelPrefix is the prefix of all subscription channels.
*/
const ChannelPrefix = "query-sub"

/*
MessageResultMightHaveChanged is the message type which is sent when the
result of a query might have changed.
*/
const MessageResultMightHaveChanged = "resultMightHaveChanged"

/*
Message is a message which is sent to subscribers.
*/
type Message struct {
	Type string `json:"type"`
}

/*
Listener receives the messages of a subscription channel.
*/
type Listener func(channel string, msg Message)

/*
ChannelName returns the channel name of a user and a serialized query.
*/
func ChannelName(userID string, query string) string {
	return fmt.Sprintf("%v:%v:%v", ChannelPrefix, userID, query)
}

/*
subscription is an active subscription of a user to a query.
*/
type subscription struct {
	channel   string
	userID    string
	queries   []graph.FactQuery // One query per referenced predicate
	listeners map[uint64]Listener
}

/*
Notifier keeps the registry of active subscriptions. It is a graph rule
which checks each created or deleted fact against all subscriptions.
*/
type Notifier struct {
	subs    map[string]*subscription // Map of channel names to subscriptions
	lock    *sync.RWMutex            // Lock for the subscription map
	nextID  uint64                   // Next listener id
	pool    *pools.ThreadPool        // Pool which delivers notifications
	members singleflight.Group       // Deduplicated visibility lookups
}

/*
NewNotifier creates a new notifier which delivers notifications with a
given number of workers.
*/
func NewNotifier(workers int) *Notifier {
	pool := pools.NewThreadPool()
	pool.SetWorkerCount(workers, false)

	return &Notifier{make(map[string]*subscription), &sync.RWMutex{}, 1, pool, singleflight.Group{}}
}

/*
Subscribe adds a listener for a query of a user. Returns the channel name
and the id of the listener.
*/
func (n *Notifier) Subscribe(userID string, cq *query.CompoundQuery, l Listener) (string, uint64) {
	channel := ChannelName(userID, cq.String())

	n.lock.Lock()
	defer n.lock.Unlock()

	sub, ok := n.subs[channel]
	if !ok {
		sub = &subscription{channel, userID, nil, make(map[uint64]Listener)}

		for _, p := range cq.Predicates() {
			sub.queries = append(sub.queries, graph.FactQuery{Predicate: []string{p}})
		}

		n.subs[channel] = sub
	}

	id := n.nextID
	n.nextID++

	sub.listeners[id] = l

	logger.Debug("Subscribed listener ", id, " to ", channel)

	return channel, id
}

/*
Unsubscribe removes a listener from a channel. The subscription is dropped
when its last listener is removed.
*/
func (n *Notifier) Unsubscribe(channel string, id uint64) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if sub, ok := n.subs[channel]; ok {
		delete(sub.listeners, id)

		if len(sub.listeners) == 0 {
			delete(n.subs, channel)
		}

		logger.Debug("Unsubscribed listener ", id, " from ", channel)
	}
}

/*
Channels returns the channel names of all active subscriptions.
*/
func (n *Notifier) Channels() []string {
	n.lock.RLock()
	defer n.lock.RUnlock()

	ret := make([]string, 0, len(n.subs))
	for c := range n.subs {
		ret = append(ret, c)
	}

	sort.Strings(ret)

	return ret
}

/*
Wait waits until all pending notifications have been delivered.
*/
func (n *Notifier) Wait() {
	n.pool.WaitAll()
}

/*
Close delivers all pending notifications and stops all workers.
*/
func (n *Notifier) Close() {
	n.pool.JoinAll()
}

/*
Name returns the name of the rule.
*/
func (n *Notifier) Name() string {
	return "subscription.notify"
}

/*
Handles returns a list of events which are handled by this rule.
*/
func (n *Notifier) Handles() []int {
	return []int{graph.EventFactCreated, graph.EventFactDeleted}
}

/*
Handle handles an event. Subscriptions are checked in the background.
*/
func (n *Notifier) Handle(gm *graph.Manager, event int, ed ...interface{}) error {
	sf := ed[0].(data.StoredFact)

	// Term declarations do not notify

	if sf.Predicate == data.PredicateIsATermFor {
		return nil
	}

	// Work on a snapshot of the registry

	n.lock.RLock()
	subs := make([]*subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.lock.RUnlock()

	if len(subs) > 0 {
		n.pool.AddTask(&notifyTask{n, gm, sf, subs})
	}

	return nil
}

/*
isVisible checks if a user can see the facts of a placement.
*/
func (n *Notifier) isVisible(gm *graph.Manager, userID string, p data.Placement) (bool, error) {
	res, err, _ := n.members.Do(fmt.Sprint(userID, "|", p.FactBox, "|", p.Graph), func() (interface{}, error) {
		return gm.IsMember(context.Background(), userID, p)
	})

	if err != nil {
		return false, err
	}

	return res.(bool), nil
}

/*
notifyTask checks a fact against a list of subscriptions and notifies all
affected listeners.
*/
type notifyTask struct {
	n    *Notifier
	gm   *graph.Manager
	sf   data.StoredFact
	subs []*subscription
}

/*
Run checks the subscriptions.
*/
func (t *notifyTask) Run(tid uint64) error {
	accessChange := data.IsAccessGrantingPredicate(t.sf.Predicate)

	for _, sub := range t.subs {

		if !accessChange {
			ok, err := t.gm.MatchAny(context.Background(), t.sf.Fact, sub.queries)
			if err != nil {
				return err
			} else if !ok {
				continue
			}
		}

		visible, err := t.n.isVisible(t.gm, sub.userID, t.sf.Placement)
		if err != nil {
			return err
		} else if !visible {
			continue
		}

		t.n.lock.RLock()
		listeners := make([]Listener, 0, len(sub.listeners))
		for _, l := range sub.listeners {
			listeners = append(listeners, l)
		}
		t.n.lock.RUnlock()

		for _, l := range listeners {
			pings.Inc()
			l(sub.channel, Message{MessageResultMightHaveChanged})
		}
	}

	return nil
}

/*
HandleError logs errors which occurred while checking subscriptions.
*/
func (t *notifyTask) HandleError(e error) {
	logger.Error(fmt.Sprintf("Could not notify subscribers of %v: %v", t.sf.Fact, e))
}
