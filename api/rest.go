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
	"net/http"
	"strings"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/attribute"
	"devt.de/krotik/linkedrecords/auth"
	"devt.de/krotik/linkedrecords/config"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/query"
	"devt.de/krotik/linkedrecords/subscription"
)

/*
APIVersion is the version of the REST API
*/
const APIVersion = "1.0.0"

/*
APIRoot is the root directory for the REST API
*/
const APIRoot = ""

/*
APISchemes defines the supported schemes by the REST API
*/
var APISchemes = []string{"https"}

/*
APIHost is the host definition for the REST API
*/
var APIHost = "localhost:6543"

/*
GeneralEndpointMap contains general endpoints which should always be available
*/
var GeneralEndpointMap = map[string]RestEndpointInst{
	EndpointAbout:   AboutEndpointInst,
	EndpointSwagger: SwaggerEndpointInst,
}

/*
MetricsEndpointMap contains the endpoint for prometheus metrics
*/
var MetricsEndpointMap = map[string]RestEndpointInst{
	EndpointMetrics: MetricsEndpointInst,
}

/*
RestEndpointInst models a factory function for REST endpoint handlers.
*/
type RestEndpointInst func() RestEndpointHandler

/*
RestEndpointHandler models a REST endpoint handler.
*/
type RestEndpointHandler interface {

	/*
		HandleGET handles a GET request.
	*/
	HandleGET(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandlePOST handles a POST request.
	*/
	HandlePOST(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandlePUT handles a PUT request.
	*/
	HandlePUT(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandleDELETE handles a DELETE request.
	*/
	HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		SwaggerDefs is used to describe the endpoint in swagger.
	*/
	SwaggerDefs(s map[string]interface{})
}

// Components used by the REST API
// ===============================

/*
GM is the GraphManager instance which should be used by the REST API.
*/
var GM *graph.Manager

/*
AE is the authorization engine which should be used by the REST API.
*/
var AE *auth.Engine

/*
Resolver is the query resolver which should be used by the REST API.
*/
var Resolver *query.Resolver

/*
Attributes is the attribute registry which should be used by the REST API.
*/
var Attributes *attribute.Registry

/*
Notifier is the subscription notifier which should be used by the REST API.
*/
var Notifier *subscription.Notifier

/*
Map of all registered endpoint handlers.
*/
var registered = map[string]RestEndpointInst{}

/*
HandleFunc to use for registering handlers
*/
var HandleFunc = http.HandleFunc

/*
RegisterRestEndpoints registers all given REST endpoint handlers. An endpoint
URL ending in a slash is also registered without the slash so non-GET requests
are not redirected.
*/
func RegisterRestEndpoints(endpointInsts map[string]RestEndpointInst) {

	for url, endpointInst := range endpointInsts {
		registered[url] = endpointInst

		handler := func() func(w http.ResponseWriter, r *http.Request) {

			var handlerURL = strings.TrimSuffix(url, "/")
			var handlerInst = endpointInst

			return func(w http.ResponseWriter, r *http.Request) {

				// Create a new handler instance

				handler := handlerInst()

				// Handle request in appropriate method

				res := strings.Trim(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, handlerURL)), "/")

				var resources []string

				if res != "" {
					resources = strings.Split(res, "/")
				}

				switch r.Method {
				case "GET":
					handler.HandleGET(w, r, resources)

				case "POST":
					handler.HandlePOST(w, r, resources)

				case "PUT":
					handler.HandlePUT(w, r, resources)

				case "DELETE":
					handler.HandleDELETE(w, r, resources)

				default:
					http.Error(w, http.StatusText(http.StatusMethodNotAllowed),
						http.StatusMethodNotAllowed)
				}
			}
		}()

		HandleFunc(url, handler)

		if trimmed := strings.TrimSuffix(url, "/"); trimmed != "" && trimmed != url {
			HandleFunc(trimmed, handler)
		}
	}
}

/*
UserID returns the authenticated user of a request. The user id is set by an
upstream authentication layer in the configured user header. Returns an empty
string if the request does not carry a valid user id.
*/
func UserID(r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get(config.Str(config.UserHeader)))

	if !data.IsUserID(userID) {
		if userID != "" {
			logger.Debug("Ignoring invalid user id in request header: ", userID)
		}
		return ""
	}

	return userID
}

/*
DefaultEndpointHandler represents the default endpoint handler.
*/
type DefaultEndpointHandler struct {
}

/*
HandleGET is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

/*
HandlePOST is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

/*
HandlePUT is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandlePUT(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

/*
HandleDELETE is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

/*
logger is the logger of the REST API.
*/
var logger = logutil.GetLogger("linkedrecords.api")
