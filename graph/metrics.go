/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import "github.com/prometheus/client_golang/prometheus"

var (
	factsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "linkedrecords",
		Name:      "facts_saved_total",
		Help:      "Number of facts which were stored.",
	})

	termFactsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "linkedrecords",
		Name:      "term_facts_saved_total",
		Help:      "Number of facts which were stored in the term box.",
	})

	factsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "linkedrecords",
		Name:      "facts_deleted_total",
		Help:      "Number of facts which were deleted.",
	})

	partitionMerges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkedrecords",
		Name:      "factbox_merges_total",
		Help:      "Number of partition merges by kind (factbox, graph).",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(factsSaved, termFactsSaved, factsDeleted, partitionMerges)
}
