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
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/config"
)

func dialQuerySub(userID string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}

	if userID != "" {
		header.Set(config.Str(config.UserHeader), userID)
	}

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + EndpointQuerySub

	return websocket.DefaultDialer.Dial(wsURL, header)
}

func readQuerySubMessage(t *testing.T, c *websocket.Conn) string {
	t.Helper()

	c.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatal("Could not read message:", err)
	}

	return string(msg)
}

func TestQuerySub(t *testing.T) {
	resetData(t)

	if st, res := sendTestRequest(serverURL+EndpointFacts, "POST", "us-a",
		[]byte(`[["Todo", "$isATermFor", "Something to do"]]`)); st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if _, resp, err := dialQuerySub(""); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Error("Unexpected result:", resp, err)
		return
	}

	c, _, err := dialQuerySub("us-a")
	if err != nil {
		t.Error("Could not connect:", err)
		return
	}
	defer c.Close()

	channel := `query-sub:us-a:{"todos":[["isA","Todo"]]}`

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","query":{"todos":[["isA","Todo"]]}}`))

	if res := readQuerySubMessage(t, c); res != `{"type":"subscribed","channel":"query-sub:us-a:{\"todos\":[[\"isA\",\"Todo\"]]}"}` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(api.Notifier.Channels()); res != "["+channel+"]" {
		t.Error("Unexpected result:", res)
		return
	}

	// A fact with an unrelated predicate does not notify

	st, res := sendTestRequest(serverURL+EndpointFacts, "POST", "us-a", []byte(`[["t1", "title", "Shopping"]]`))
	if st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	api.Notifier.Wait()

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"foo"}`))

	if res := readQuerySubMessage(t, c); res != `{"type":"error","payload":"Unknown message type: foo"}` {
		t.Error("Unexpected result:", res)
		return
	}

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","query":["isA"]}`))

	if res := readQuerySubMessage(t, c); !strings.HasPrefix(res, `{"type":"error","payload":"GraphError: Invalid query`) {
		t.Error("Unexpected result:", res)
		return
	}

	c.WriteMessage(websocket.TextMessage, []byte(`{`))

	if res := readQuerySubMessage(t, c); !strings.HasPrefix(res, `{"type":"error","payload":`) {
		t.Error("Unexpected result:", res)
		return
	}

	// A matching fact notifies the subscriber

	st, res = sendTestRequest(serverURL+EndpointFacts, "POST", "us-a", []byte(`[["t1", "isA", "Todo"]]`))
	if st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if res := readQuerySubMessage(t, c); res != `{"type":"resultMightHaveChanged","channel":"query-sub:us-a:{\"todos\":[[\"isA\",\"Todo\"]]}"}` {
		t.Error("Unexpected result:", res)
		return
	}

	// Facts of other users are not visible and do not notify

	st, res = sendTestRequest(serverURL+EndpointFacts, "POST", "us-b", []byte(`[["t2", "isA", "Todo"]]`))
	if st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	api.Notifier.Wait()

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"unsubscribe","channel":"`+
		strings.ReplaceAll(channel, `"`, `\"`)+`"}`))

	if res := readQuerySubMessage(t, c); res != `{"type":"unsubscribed","channel":"query-sub:us-a:{\"todos\":[[\"isA\",\"Todo\"]]}"}` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(api.Notifier.Channels()); res != "[]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Closing the connection removes all subscriptions

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","query":"{\"todos\":[[\"isA\",\"Todo\"]]}"}`))

	if res := readQuerySubMessage(t, c); res != `{"type":"subscribed","channel":"query-sub:us-a:{\"todos\":[[\"isA\",\"Todo\"]]}"}` {
		t.Error("Unexpected result:", res)
		return
	}

	c.Close()

	for i := 0; i < 50 && len(api.Notifier.Channels()) > 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	if res := fmt.Sprint(api.Notifier.Channels()); res != "[]" {
		t.Error("Unexpected result:", res)
		return
	}
}
