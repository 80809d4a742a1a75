/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"devt.de/krotik/linkedrecords/config"
)

/*
EndpointSwagger is the swagger endpoint URL (rooted). Handles swagger.json/
*/
const EndpointSwagger = APIRoot + "/swagger.json/"

/*
SwaggerEndpointInst creates a new endpoint handler.
*/
func SwaggerEndpointInst() RestEndpointHandler {
	return &swaggerEndpoint{}
}

/*
Handler object for swagger operations.
*/
type swaggerEndpoint struct {
	*DefaultEndpointHandler
}

/*
NewSwaggerDoc creates the swagger document of all registered endpoints.

All requests which act on behalf of a user carry the user id in the
configured user header. The common error responses are defined once and
can be referenced by endpoints (e.g. #/responses/Forbidden).
*/
func NewSwaggerDoc() map[string]interface{} {
	errorResponse := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"description": desc,
			"schema": map[string]interface{}{
				"$ref": "#/definitions/Error",
			},
		}
	}

	doc := map[string]interface{}{
		"swagger":  "2.0",
		"host":     APIHost,
		"schemes":  APISchemes,
		"basePath": "/" + APIRoot,
		"produces": []string{"application/json"},
		"securityDefinitions": map[string]interface{}{
			"user": map[string]interface{}{
				"type":        "apiKey",
				"in":          "header",
				"name":        config.Str(config.UserHeader),
				"description": "Id of the authenticated user (us-...) set by the authenticating proxy.",
			},
		},
		"security": []interface{}{
			map[string]interface{}{"user": []string{}},
		},
		"responses": map[string]interface{}{
			"BadRequest":   errorResponse("Invalid facts, queries or attribute data"),
			"Unauthorized": errorResponse("The request has no authenticated user"),
			"Forbidden":    errorResponse("The user is not authorized for the requested facts or nodes"),
		},
		"paths": map[string]interface{}{},
		"definitions": map[string]interface{}{
			"Error": map[string]interface{}{
				"description": "A human readable error message of the form " +
					"'GraphError: <kind> (<detail>)' e.g. 'GraphError: Not authorized (us-1: create fact [a b c])'.",
				"type": "string",
			},
		},
	}

	var urls []string
	for url := range registered {
		urls = append(urls, url)
	}

	sort.Strings(urls)

	seen := make(map[string]bool)

	for _, url := range urls {

		// Each endpoint is registered with and without trailing slash

		if endpoint := strings.TrimSuffix(url, "/"); !seen[endpoint] {
			seen[endpoint] = true
			registered[url]().SwaggerDefs(doc)
		}
	}

	return doc
}

/*
HandleGET returns the swagger definition of the REST API.
*/
func (se *swaggerEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(NewSwaggerDoc())
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (se *swaggerEndpoint) SwaggerDefs(s map[string]interface{}) {
	s["info"] = map[string]interface{}{
		"title":       "LinkedRecords API",
		"description": "Query and modify facts and attributes of the LinkedRecords fact graph.",
		"version":     APIVersion,
	}
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (a *aboutEndpoint) SwaggerDefs(s map[string]interface{}) {
	stringList := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"description": desc,
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
		}
	}

	s["paths"].(map[string]interface{})["/about"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return information about the LinkedRecords server.",
			"description": "Returns the API versions, the registered endpoints, the product name and version.",
			"produces":    []string{"application/json"},
			"security":    []interface{}{},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "About info object",
					"schema": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"api_versions": stringList("List of available API versions."),
							"endpoints":    stringList("List of registered endpoints."),
							"product": map[string]interface{}{
								"description": "Product name (LinkedRecords).",
								"type":        "string",
							},
							"version": map[string]interface{}{
								"description": "Version of the server.",
								"type":        "string",
							},
						},
					},
				},
			},
		},
	}
}
