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
Package v1 contains LinkedRecords REST API Version 1.

/facts

Endpoint to query, create and delete facts. Facts are triples of subject,
predicate and object. A GET request takes optional JSON encoded subject,
predicate and object filter parameters. POST and DELETE requests take a list
of facts ([subject, predicate, object] lists or objects).

/attributes

Endpoint to resolve a compound query (query parameter) to attributes.

/attribute-compositions

Endpoint to create a set of attributes together with the facts which describe
them.

/query-sub

Websocket endpoint for live query subscriptions.

All endpoints require a user id in the configured user header.
*/
package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
APIv1 is the directory for version 1 of the API
*/
const APIv1 = "/v1"

/*
V1EndpointMap is a map of urls to endpoints for version 1 of the API
*/
var V1EndpointMap = map[string]api.RestEndpointInst{
	EndpointFacts:                FactsEndpointInst,
	EndpointAttributes:           AttributesEndpointInst,
	EndpointAttributeComposition: AttributeCompositionsEndpointInst,
	EndpointQuerySub:             QuerySubEndpointInst,
}

// Helper functions
// ================

/*
checkUser returns the user of a request. Writes an error and returns an empty
string if the request has no valid user.
*/
func checkUser(w http.ResponseWriter, r *http.Request) string {
	userID := api.UserID(r)

	if userID == "" {
		http.Error(w, "Request requires an authenticated user", http.StatusUnauthorized)
	}

	return userID
}

/*
writeError writes an error response with a status code which matches the error.
*/
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case util.IsError(err, util.ErrAuthorization):
		status = http.StatusForbidden

	case util.IsError(err, util.ErrInvalidQuery),
		util.IsError(err, util.ErrInvalidData),
		util.IsError(err, util.ErrUnknownAttributeKind),
		util.IsError(err, util.ErrUnknownAttribute):
		status = http.StatusBadRequest
	}

	http.Error(w, err.Error(), status)
}

/*
writeJSON writes a JSON response.
*/
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("content-type", "application/json; charset=utf-8")

	ret := json.NewEncoder(w)
	ret.Encode(data)
}

/*
errEmptyBody is returned by decodeFacts if the request had no body.
*/
var errEmptyBody = errors.New("Empty request body")

/*
decodeFacts decodes a list of facts from a request body. Each fact is either
a [subject, predicate, object] list or an object with subject, predicate and
object. A single fact object is also accepted.
*/
func decodeFacts(body io.Reader) ([]data.Fact, error) {
	var raw json.RawMessage

	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, errEmptyBody
		}
		return nil, util.NewGraphError(util.ErrInvalidData, "Could not decode request body: %v", err)
	}

	var single data.Fact

	if err := json.Unmarshal(raw, &single); err == nil {
		return checkFacts([]data.Fact{single})
	}

	var list []json.RawMessage

	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, util.NewGraphError(util.ErrInvalidData,
			"Request body must be a list of facts: %v", err)
	}

	facts := make([]data.Fact, 0, len(list))

	for _, e := range list {
		var f data.Fact
		var triple []string

		if err := json.Unmarshal(e, &triple); err == nil {
			if len(triple) != 3 {
				return nil, util.NewGraphError(util.ErrInvalidData,
					"Fact must be a [subject, predicate, object] list: %v", triple)
			}
			f = data.NewFact(triple[0], triple[1], triple[2])

		} else if err := json.Unmarshal(e, &f); err != nil {
			return nil, util.NewGraphError(util.ErrInvalidData, "Could not decode fact: %v", string(e))
		}

		facts = append(facts, f)
	}

	return checkFacts(facts)
}

/*
checkFacts makes sure that all facts are complete.
*/
func checkFacts(facts []data.Fact) ([]data.Fact, error) {
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, util.NewGraphError(util.ErrInvalidData, err.Error())
		}
	}

	return facts, nil
}
