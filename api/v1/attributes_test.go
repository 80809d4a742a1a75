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
	"fmt"
	"net/url"
	"strings"
	"testing"
)

/*
createTodoList creates a todo list with one todo on behalf of us-a. Returns
the ids of the list and the todo.
*/
func createTodoList(t *testing.T) (string, string) {
	st, res := sendTestRequest(serverURL+EndpointFacts, "POST", "us-a", []byte(`[
  ["Todo", "$isATermFor", "Something to do"],
  ["TodoList", "$isATermFor", "A list of todos"]
]`))
	if st != "200 OK" {
		t.Fatal("Unexpected response:", st, res)
	}

	st, res = sendTestRequest(serverURL+EndpointAttributeComposition, "POST", "us-a", []byte(`{
  "todo" : {
    "type"  : "KeyValueAttribute",
    "value" : { "title" : "Shopping" },
    "facts" : [["isA", "Todo"]]
  },
  "list" : {
    "type"  : "LongTextAttribute",
    "value" : "Things to do",
    "facts" : [["isA", "TodoList"], ["$it", "contains", "{{todo}}"]]
  }
}`))

	var comp map[string]map[string]interface{}

	if err := json.Unmarshal([]byte(res), &comp); st != "200 OK" || err != nil {
		t.Fatal("Unexpected response:", st, res, err)
	}

	listID := fmt.Sprint(comp["list"]["id"])
	todoID := fmt.Sprint(comp["todo"]["id"])

	if !strings.HasPrefix(listID, "l-") || !strings.HasPrefix(todoID, "kv-") ||
		comp["list"]["value"] != "Things to do" ||
		fmt.Sprint(comp["todo"]["value"]) != "map[title:Shopping]" {
		t.Fatal("Unexpected response:", res)
	}

	return listID, todoID
}

func TestAttributeCompositions(t *testing.T) {
	queryURL := serverURL + EndpointAttributeComposition

	resetData(t)

	st, res := sendTestRequest(queryURL, "POST", "", []byte(`{}`))
	if st != "401 Unauthorized" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL, "POST", "us-a", []byte(`{}`))
	if st != "400 Bad Request" || res != "Request body must contain attribute groups" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL, "POST", "us-a", []byte(`[]`))
	if st != "400 Bad Request" || !strings.HasPrefix(res, "Could not decode request body as object of attribute groups") {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL, "POST", "us-a", []byte(`{"a" : {"type" : "Foo"}}`))
	if st != "400 Bad Request" || res != "GraphError: Unknown attribute kind (Foo)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL, "POST", "us-a", []byte(`{"a" : {"type" : "LongTextAttribute", "value" : "x", "facts" : [["a"]]}}`))
	if st != "400 Bad Request" || !strings.HasPrefix(res, "GraphError: Invalid data (Fact of group a must be") {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL, "POST", "us-a", []byte(`{"a" : {"type" : "LongTextAttribute", "value" : 5}}`))
	if st != "400 Bad Request" {
		t.Error("Unexpected response:", st, res)
		return
	}

	listID, todoID := createTodoList(t)

	// The composition facts were written with the attribute ids

	st, res = sendTestRequest(serverURL+EndpointFacts+"?subject="+url.QueryEscape(fmt.Sprintf(`"%v"`, listID)),
		"GET", "us-a", nil)

	if st != "200 OK" || res != fmt.Sprintf(`
[
  [
    "%v",
    "$wasCreatedBy",
    "us-a"
  ],
  [
    "%v",
    "contains",
    "%v"
  ],
  [
    "%v",
    "isA",
    "TodoList"
  ]
]`[1:], listID, listID, todoID, listID) {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Another user cannot attach facts to the list

	st, res = sendTestRequest(queryURL, "POST", "us-b", []byte(fmt.Sprintf(`{
  "todo" : {
    "type"  : "KeyValueAttribute",
    "value" : { "title" : "Hijack" },
    "facts" : [["%v", "contains", "$it"]]
  }
}`, listID)))

	if st != "403 Forbidden" {
		t.Error("Unexpected response:", st, res)
		return
	}
}

func TestAttributes(t *testing.T) {
	queryURL := serverURL + EndpointAttributes

	resetData(t)

	listID, todoID := createTodoList(t)

	st, res := sendTestRequest(queryURL, "GET", "us-a", nil)
	if st != "400 Bad Request" || res != "Query string for query is required" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL+"?query="+url.QueryEscape(`["isA"]`), "GET", "us-a", nil)
	if st != "400 Bad Request" || !strings.HasPrefix(res, "GraphError: Invalid query") {
		t.Error("Unexpected response:", st, res)
		return
	}

	q := url.QueryEscape(fmt.Sprintf(`{
  "list" : "%v",
  "todos" : [["isA", "Todo"]],
  "items" : [["%v", "contains", "$it"]],
  "lists" : [["isA", "TodoList"], ["contains", "%v"]]
}`, listID, listID, todoID))

	st, res = sendTestRequest(queryURL+"?query="+q, "GET", "us-a", nil)
	if st != "200 OK" || res != fmt.Sprintf(`
{
  "items": [
    {
      "id": "%v",
      "value": {
        "title": "Shopping"
      }
    }
  ],
  "list": {
    "id": "%v",
    "value": "Things to do"
  },
  "lists": [
    {
      "id": "%v",
      "value": "Things to do"
    }
  ],
  "todos": [
    {
      "id": "%v",
      "value": {
        "title": "Shopping"
      }
    }
  ]
}`[1:], todoID, listID, listID, todoID) {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Other users get nothing

	st, res = sendTestRequest(queryURL+"?query="+q, "GET", "us-b", nil)
	if st != "200 OK" || res != `
{
  "items": [],
  "lists": [],
  "todos": []
}`[1:] {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Sharing the list makes it readable

	st, res = sendTestRequest(serverURL+EndpointFacts, "POST", "us-a",
		[]byte(fmt.Sprintf(`[["us-b", "$canRead", "%v"]]`, listID)))
	if st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, res = sendTestRequest(queryURL+"?query="+url.QueryEscape(fmt.Sprintf(`{"list" : "%v"}`, listID)), "GET", "us-b", nil)
	if st != "200 OK" || res != fmt.Sprintf(`
{
  "list": {
    "id": "%v",
    "value": "Things to do"
  }
}`[1:], listID) {
		t.Error("Unexpected response:", st, res)
		return
	}
}
