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
	"fmt"
	"sync"
	"time"

	"devt.de/krotik/common/flowutil"
	"github.com/redis/go-redis/v9"
)

/*
Broadcaster distributes cache invalidations between processes. Broadcast
failures are never reported to the caller - a lost invalidation only means
a cache entry lives until it expires or is evicted.
*/
type Broadcaster interface {

	/*
		Publish announces that the cached decisions of a user are stale.
	*/
	Publish(userID string)

	/*
		Subscribe registers a callback which receives announced user ids.
	*/
	Subscribe(callback func(userID string))

	/*
		Close stops the broadcaster.
	*/
	Close() error
}

// In-process broadcaster
// ======================

/*
eventInvalidate is the event pump event for invalidations.
*/
const eventInvalidate = "auth.invalidate"

/*
LocalBroadcaster distributes invalidations between caches of the same process.
*/
type LocalBroadcaster struct {
	pump *flowutil.EventPump
}

/*
NewLocalBroadcaster creates a new in-process broadcaster.
*/
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{flowutil.NewEventPump()}
}

/*
Publish announces that the cached decisions of a user are stale.
*/
func (lb *LocalBroadcaster) Publish(userID string) {
	lb.pump.PostEvent(eventInvalidate, userID)
}

/*
Subscribe registers a callback which receives announced user ids.
*/
func (lb *LocalBroadcaster) Subscribe(callback func(userID string)) {
	lb.pump.AddObserver(eventInvalidate, nil, func(event string, source interface{}) {
		callback(fmt.Sprint(source))
	})
}

/*
Close removes all subscribers.
*/
func (lb *LocalBroadcaster) Close() error {
	lb.pump.RemoveObservers("", nil)
	return nil
}

// Redis broadcaster
// =================

/*
publishTimeout is the maximum time a publish may take.
*/
const publishTimeout = 2 * time.Second

/*
RedisBroadcaster distributes invalidations between processes through a
Redis pub/sub channel.
*/
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	lock    *sync.Mutex
	cancel  context.CancelFunc
}

/*
NewRedisBroadcaster creates a new broadcaster which uses a given Redis server
and channel. The connection is established lazily - an unreachable server
does not cause an error.
*/
func NewRedisBroadcaster(addr string, channel string) *RedisBroadcaster {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: publishTimeout,
		MaxRetries:  1,
	})

	return &RedisBroadcaster{client, channel, nil, &sync.Mutex{}, nil}
}

/*
Publish announces that the cached decisions of a user are stale.
*/
func (rb *RedisBroadcaster) Publish(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := rb.client.Publish(ctx, rb.channel, userID).Err(); err != nil {
		logger.Debug(fmt.Sprintf("Could not publish cache invalidation for %v: %v", userID, err))
	}
}

/*
Subscribe registers a callback which receives announced user ids. Messages
are received in a background goroutine until the broadcaster is closed.
*/
func (rb *RedisBroadcaster) Subscribe(callback func(userID string)) {
	rb.lock.Lock()
	defer rb.lock.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := rb.client.Subscribe(ctx, rb.channel)

	rb.pubsub = pubsub
	rb.cancel = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				callback(msg.Payload)
			}
		}
	}()
}

/*
Close stops receiving messages and closes the Redis connection.
*/
func (rb *RedisBroadcaster) Close() error {
	rb.lock.Lock()
	defer rb.lock.Unlock()

	if rb.cancel != nil {
		rb.cancel()
		rb.pubsub.Close()
	}

	return rb.client.Close()
}
