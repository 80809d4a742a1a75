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
	"net/http"
	"sort"
	"strings"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/attribute"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/util"
	"devt.de/krotik/linkedrecords/query"
)

/*
EndpointAttributeComposition is the attribute composition endpoint URL (rooted). Handles attribute-compositions/
*/
const EndpointAttributeComposition = api.APIRoot + "/attribute-compositions/"

/*
AttributeCompositionsEndpointInst creates a new endpoint handler.
*/
func AttributeCompositionsEndpointInst() api.RestEndpointHandler {
	return &attributeCompositionsEndpoint{}
}

/*
Handler object for attribute compositions.
*/
type attributeCompositionsEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
compositionGroup is a single attribute of a composition.
*/
type compositionGroup struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
	Facts [][]string  `json:"facts"`
}

/*
HandlePOST creates all attributes of a composition. Each attribute gets a
creator fact. The facts of a group can refer to the attribute of the group
with $it and to attributes of other groups with {{group}}.
*/
func (ce *attributeCompositionsEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	var comp map[string]*compositionGroup

	userID := checkUser(w, r)
	if userID == "" {
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		http.Error(w, "Could not decode request body as object of attribute groups: "+err.Error(),
			http.StatusBadRequest)
		return
	} else if len(comp) == 0 {
		http.Error(w, "Request body must contain attribute groups", http.StatusBadRequest)
		return
	}

	res, err := createComposition(r, userID, comp)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, res)
}

/*
createComposition creates the attributes and facts of a composition.
*/
func createComposition(r *http.Request, userID string, comp map[string]*compositionGroup) (map[string]*attribute.Attribute, error) {
	ctx := r.Context()

	var names []string
	for name := range comp {
		names = append(names, name)
	}
	sort.Strings(names)

	// Check all groups before anything is created

	for _, name := range names {
		g := comp[name]

		if g == nil {
			return nil, util.NewGraphError(util.ErrInvalidData, "Group %v must be an object", name)
		}

		if _, err := api.Attributes.TypeByName(g.Type); err != nil {
			return nil, err
		}

		for _, f := range g.Facts {
			if len(f) != 2 && len(f) != 3 {
				return nil, util.NewGraphError(util.ErrInvalidData,
					"Fact of group %v must be a [predicate, object] or [subject, predicate, object] list: %v", name, f)
			}
		}
	}

	// Create attributes and their creator facts

	attrs := make(map[string]*attribute.Attribute, len(names))
	var creatorFacts []data.Fact

	for _, name := range names {
		a, err := api.Attributes.Create(ctx, comp[name].Type, comp[name].Value)
		if err != nil {
			return nil, err
		}

		attrs[name] = a
		creatorFacts = append(creatorFacts, data.NewFact(a.ID, data.PredicateWasCreatedBy, userID))
	}

	if err := api.AE.RequireCreateFacts(ctx, creatorFacts, userID); err != nil {
		return nil, err
	}

	if _, err := api.GM.SaveAll(ctx, creatorFacts, userID); err != nil {
		return nil, err
	}

	// Substitute placeholders in the remaining facts

	var replacements []string
	for _, name := range names {
		replacements = append(replacements, fmt.Sprintf("{{%v}}", name), attrs[name].ID)
	}
	replacer := strings.NewReplacer(replacements...)

	var facts []data.Fact

	for _, name := range names {
		substitute := func(s string) string {
			if s == query.Wildcard {
				return attrs[name].ID
			}
			return replacer.Replace(s)
		}

		for _, f := range comp[name].Facts {
			if len(f) == 2 {
				f = []string{query.Wildcard, f[0], f[1]}
			}

			fact := data.NewFact(substitute(f[0]), substitute(f[1]), substitute(f[2]))

			if err := fact.Validate(); err != nil {
				return nil, util.NewGraphError(util.ErrInvalidData, err.Error())
			}

			facts = append(facts, fact)
		}
	}

	if err := api.AE.RequireCreateFacts(ctx, facts, userID); err != nil {
		return nil, err
	}

	if _, err := api.GM.SaveAll(ctx, facts, userID); err != nil {
		return nil, err
	}

	return attrs, nil
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (ce *attributeCompositionsEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/attribute-compositions"] = map[string]interface{}{
		"post": map[string]interface{}{
			"summary":     "Create a composition of attributes.",
			"description": "Creates several attributes together with facts which describe them.",
			"consumes": []string{
				"application/json",
			},
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "composition",
					"in":          "body",
					"description": "Object of group names to attribute type, value and facts.",
					"required":    true,
					"schema": map[string]interface{}{
						"type": "object",
					},
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Object of group names to created attributes.",
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
