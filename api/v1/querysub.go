/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package v1

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/query"
	"devt.de/krotik/linkedrecords/subscription"
)

/*
EndpointQuerySub is the query subscription endpoint URL (rooted). Handles websockets under query-sub/
*/
const EndpointQuerySub = api.APIRoot + "/query-sub/"

/*
Message types of the query subscription protocol
*/
const (
	QuerySubSubscribe    = "subscribe"
	QuerySubUnsubscribe  = "unsubscribe"
	QuerySubSubscribed   = "subscribed"
	QuerySubUnsubscribed = "unsubscribed"
	QuerySubError        = "error"
)

/*
upgrader can upgrade normal requests to websocket communications
*/
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

/*
QuerySubEndpointInst creates a new endpoint handler.
*/
func QuerySubEndpointInst() api.RestEndpointHandler {
	return &querySubEndpoint{}
}

/*
Handler object for query subscriptions.
*/
type querySubEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
querySubMessage is a message of the query subscription protocol.
*/
type querySubMessage struct {
	Type    string          `json:"type"`
	Query   json.RawMessage `json:"query,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload string          `json:"payload,omitempty"`
}

/*
HandleGET upgrades the connection to a websocket and handles subscribe and
unsubscribe messages. A subscription joins the channel
query-sub:<user>:<query> and receives a resultMightHaveChanged message
whenever a fact change might affect the query result.
*/
func (qe *querySubEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	// Update the incomming connection to a websocket
	// If the upgrade fails then the client gets an HTTP error response.

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Websocket connections support one concurrent reader and one concurrent writer.
	// See: https://godoc.org/github.com/gorilla/websocket#hdr-Concurrency

	connWMutex := &sync.Mutex{}

	write := func(msg querySubMessage) {
		data, _ := json.Marshal(msg)

		connWMutex.Lock()
		conn.WriteMessage(websocket.TextMessage, data)
		connWMutex.Unlock()
	}

	// Channels which were joined on this connection

	joined := make(map[string]uint64)

	defer func() {
		for channel, id := range joined {
			api.Notifier.Unsubscribe(channel, id)
		}
	}()

	listener := func(channel string, msg subscription.Message) {
		write(querySubMessage{Type: msg.Type, Channel: channel})
	}

	for {
		var msg querySubMessage

		_, raw, err := conn.ReadMessage()
		if err != nil {

			// If the client is still listening write a closing message
			// This is a NOP if the client hang up

			connWMutex.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			connWMutex.Unlock()

			conn.Close()

			return
		}

		if err := json.Unmarshal(raw, &msg); err != nil {
			write(querySubMessage{Type: QuerySubError, Payload: err.Error()})
			continue
		}

		switch msg.Type {

		case QuerySubSubscribe:
			cq, err := parseSubscriptionQuery(msg.Query)
			if err != nil {
				write(querySubMessage{Type: QuerySubError, Payload: err.Error()})
				continue
			}

			channel := subscription.ChannelName(userID, cq.String())

			if _, ok := joined[channel]; !ok {
				_, joined[channel] = api.Notifier.Subscribe(userID, cq, listener)
			}

			write(querySubMessage{Type: QuerySubSubscribed, Channel: channel})

		case QuerySubUnsubscribe:
			if id, ok := joined[msg.Channel]; ok {
				api.Notifier.Unsubscribe(msg.Channel, id)
				delete(joined, msg.Channel)
			}

			write(querySubMessage{Type: QuerySubUnsubscribed, Channel: msg.Channel})

		default:
			write(querySubMessage{Type: QuerySubError, Payload: "Unknown message type: " + msg.Type})
		}
	}
}

/*
parseSubscriptionQuery parses the query of a subscribe message. The query can
be given as JSON object or as string containing the serialized query.
*/
func parseSubscriptionQuery(raw json.RawMessage) (*query.CompoundQuery, error) {
	var s string

	if err := json.Unmarshal(raw, &s); err == nil {
		return query.ParseCompoundQuery(s)
	}

	return query.ParseCompoundQuery(string(raw))
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (qe *querySubEndpoint) SwaggerDefs(s map[string]interface{}) {
	// No swagger definitions for this endpoint as it only handles websocket requests
}
