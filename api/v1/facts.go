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
	"net/http"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/config"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
)

/*
EndpointFacts is the facts endpoint URL (rooted). Handles facts/
*/
const EndpointFacts = api.APIRoot + "/facts/"

/*
FactsEndpointInst creates a new endpoint handler.
*/
func FactsEndpointInst() api.RestEndpointHandler {
	return &factsEndpoint{}
}

/*
Handler object for fact operations.
*/
type factsEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandleGET returns all facts which match the given subject, predicate and
object parameters and which are visible to the requesting user.
*/
func (fe *factsEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	var err error

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	params := r.URL.Query()
	fq := graph.FactQuery{User: userID}

	if fq.Subject, err = graph.ParseNodeMatchers(params.Get("subject")); err == nil {
		if fq.Predicate, err = graph.ParsePredicates(params.Get("predicate")); err == nil {
			fq.Object, err = graph.ParseNodeMatchers(params.Get("object"))
		}
	}

	if err != nil {
		writeError(w, err)
		return
	}

	facts, err := api.GM.FindAll(r.Context(), fq)
	if err != nil {
		writeError(w, err)
		return
	}

	ret := make([][]string, 0, len(facts))
	for _, f := range facts {
		ret = append(ret, f.Triple())
	}

	writeJSON(w, ret)
}

/*
HandlePOST stores a list of facts. All facts are checked before any fact
is written. Returns the facts which were newly created with their placement.
*/
func (fe *factsEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	facts, err := decodeFacts(r.Body)
	if err == errEmptyBody {
		http.Error(w, "Request body must contain facts", http.StatusBadRequest)
		return
	}

	if err == nil {
		if err = api.AE.RequireCreateFacts(r.Context(), facts, userID); err == nil {
			var stored []data.StoredFact

			if stored, err = api.GM.SaveAll(r.Context(), facts, userID); err == nil {
				if stored == nil {
					stored = []data.StoredFact{}
				}

				writeJSON(w, stored)
				return
			}
		}
	}

	writeError(w, err)
}

/*
HandleDELETE deletes a list of facts. A request without a body deletes all
facts and attributes if test resets are enabled.
*/
func (fe *factsEndpoint) HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string) {

	facts, err := decodeFacts(r.Body)

	if err == errEmptyBody {

		if !config.Bool(config.EnableTestReset) {
			http.Error(w, "Deleting all facts is not enabled", http.StatusForbidden)
			return
		}

		if err = api.GM.Reset(r.Context()); err == nil {
			err = api.Attributes.Reset(r.Context())
		}

		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{"reset": true})
		return
	}

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	if err == nil {
		if err = api.AE.RequireDeleteFacts(r.Context(), facts, userID); err == nil {
			var deleted []data.StoredFact

			if deleted, err = api.GM.DeleteAll(r.Context(), facts, userID); err == nil {
				if deleted == nil {
					deleted = []data.StoredFact{}
				}

				writeJSON(w, deleted)
				return
			}
		}
	}

	writeError(w, err)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (fe *factsEndpoint) SwaggerDefs(s map[string]interface{}) {

	userParam := map[string]interface{}{
		"name":        config.Str(config.UserHeader),
		"in":          "header",
		"description": "Id of the requesting user.",
		"required":    true,
		"type":        "string",
	}

	factsBody := map[string]interface{}{
		"name":        "facts",
		"in":          "body",
		"description": "List of facts. Each fact is a [subject, predicate, object] list.",
		"required":    true,
		"schema": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"$ref": "#/definitions/Fact",
			},
		},
	}

	errorResponse := map[string]interface{}{
		"description": "Error response",
		"schema": map[string]interface{}{
			"$ref": "#/definitions/Error",
		},
	}

	s["paths"].(map[string]interface{})["/facts"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return facts.",
			"description": "Returns all facts visible to the user which match the given filters.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				userParam,
				{
					"name":        "subject",
					"in":          "query",
					"description": "JSON list of subject ids or [predicate, object] patterns.",
					"required":    false,
					"type":        "string",
				},
				{
					"name":        "predicate",
					"in":          "query",
					"description": "JSON list of predicates.",
					"required":    false,
					"type":        "string",
				},
				{
					"name":        "object",
					"in":          "query",
					"description": "JSON list of object ids or [predicate, object] patterns.",
					"required":    false,
					"type":        "string",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "List of facts.",
					"schema": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"$ref": "#/definitions/Fact",
						},
					},
				},
				"default": errorResponse,
			},
		},
		"post": map[string]interface{}{
			"summary":     "Store facts.",
			"description": "Stores a list of facts on behalf of the user.",
			"consumes": []string{
				"application/json",
			},
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{userParam, factsBody},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "List of newly created facts with their placement.",
				},
				"default": errorResponse,
			},
		},
		"delete": map[string]interface{}{
			"summary":     "Delete facts.",
			"description": "Deletes a list of facts on behalf of the user.",
			"consumes": []string{
				"application/json",
			},
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{userParam, factsBody},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "List of deleted facts with their placement.",
				},
				"default": errorResponse,
			},
		},
	}

	// Add fact definition

	s["definitions"].(map[string]interface{})["Fact"] = map[string]interface{}{
		"description": "A [subject, predicate, object] triple.",
		"type":        "array",
		"items": map[string]interface{}{
			"type": "string",
		},
	}
}
