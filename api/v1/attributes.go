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
	"devt.de/krotik/linkedrecords/query"
)

/*
EndpointAttributes is the attributes endpoint URL (rooted). Handles attributes/
*/
const EndpointAttributes = api.APIRoot + "/attributes/"

/*
AttributesEndpointInst creates a new endpoint handler.
*/
func AttributesEndpointInst() api.RestEndpointHandler {
	return &attributesEndpoint{}
}

/*
Handler object for attribute queries.
*/
type attributesEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandleGET resolves a compound query to the attributes which the requesting
user may read.
*/
func (ae *attributesEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	q := r.URL.Query().Get("query")
	if q == "" {
		http.Error(w, "Query string for query is required", http.StatusBadRequest)
		return
	}

	cq, err := query.ParseCompoundQuery(q)
	if err == nil {
		var res map[string]interface{}

		if res, err = api.Resolver.ResolveToAttributes(r.Context(), cq, userID); err == nil {
			writeJSON(w, res)
			return
		}
	}

	writeError(w, err)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (ae *attributesEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/attributes"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Resolve a compound query.",
			"description": "Resolves each group of a compound query to the attributes which the user may read.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "query",
					"in":          "query",
					"description": "JSON object of group names to an attribute id or a list of patterns.",
					"required":    true,
					"type":        "string",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Object of group names to attributes.",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
	}
}
