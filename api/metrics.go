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

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/*
EndpointMetrics is the metrics endpoint URL (rooted). Handles metrics/
*/
const EndpointMetrics = APIRoot + "/metrics/"

/*
metricsHandler serves all metrics of the default prometheus registry.
*/
var metricsHandler = promhttp.Handler()

/*
MetricsEndpointInst creates a new endpoint handler.
*/
func MetricsEndpointInst() RestEndpointHandler {
	return &metricsEndpoint{}
}

/*
Handler object for metrics operations.
*/
type metricsEndpoint struct {
	*DefaultEndpointHandler
}

/*
HandleGET returns the current metrics in the prometheus text format.
*/
func (m *metricsEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	metricsHandler.ServeHTTP(w, r)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (m *metricsEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/metrics"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return server metrics.",
			"description": "Returns counters of the fact graph engine in the prometheus text format.",
			"produces": []string{
				"text/plain",
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Metrics in the prometheus text format",
				},
			},
		},
	}
}
