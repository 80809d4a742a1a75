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

import (
	"sort"
	"strings"
	"sync"

	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/util"
)

/*
GraphRulesManager data structure
*/
type graphRulesManager struct {
	gm       *Manager                // GraphManager which provides events
	rules    map[string]Rule         // Map of graph rules
	eventMap map[int]map[string]Rule // Map of events to graph rules
	lock     *sync.RWMutex           // Lock for rule maps
}

/*
Rule models a graph rule.
*/
type Rule interface {

	/*
	   Name returns the name of the rule.
	*/
	Name() string

	/*
		Handles returns a list of events which are handled by this rule.
	*/
	Handles() []int

	/*
		Handle handles an event. The change which caused the event has
		already been committed.
	*/
	Handle(gm *Manager, event int, data ...interface{}) error
}

/*
graphEvent main event handler which receives all graph related events.
*/
func (gr *graphRulesManager) graphEvent(event int, data ...interface{}) error {
	var errors []string

	gr.lock.RLock()
	rules := make([]Rule, 0, len(gr.eventMap[event]))
	for _, rule := range gr.eventMap[event] {
		rules = append(rules, rule)
	}
	gr.lock.RUnlock()

	for _, rule := range rules {

		// Handle the event

		if err := rule.Handle(gr.gm, event, data...); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if errors != nil {
		return &util.GraphError{Type: util.ErrRule, Detail: strings.Join(errors, ";")}
	}

	return nil
}

/*
SetGraphRule sets a GraphRule.
*/
func (gr *graphRulesManager) SetGraphRule(rule Rule) {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	gr.rules[rule.Name()] = rule

	for _, handledEvent := range rule.Handles() {

		rules, ok := gr.eventMap[handledEvent]
		if !ok {
			rules = make(map[string]Rule)
			gr.eventMap[handledEvent] = rules
		}

		rules[rule.Name()] = rule
	}
}

/*
GraphRules returns a list of all available graph rules.
*/
func (gr *graphRulesManager) GraphRules() []string {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	ret := make([]string, 0, len(gr.rules))

	for rule := range gr.rules {
		ret = append(ret, rule)
	}

	sort.StringSlice(ret).Sort()

	return ret
}

// System rule SystemRuleUpdateMetrics
// ===================================

/*
SystemRuleUpdateMetrics is a system rule which counts fact graph changes.
*/
type SystemRuleUpdateMetrics struct {
}

/*
Name returns the name of the rule.
*/
func (r *SystemRuleUpdateMetrics) Name() string {
	return "system.updatemetrics"
}

/*
Handles returns a list of events which are handled by this rule.
*/
func (r *SystemRuleUpdateMetrics) Handles() []int {
	return []int{EventFactCreated, EventFactDeleted, EventFactBoxMerged, EventGraphPromoted}
}

/*
Handle handles an event.
*/
func (r *SystemRuleUpdateMetrics) Handle(gm *Manager, event int, ed ...interface{}) error {

	switch event {
	case EventFactCreated:
		factsSaved.Inc()

		if ed[0].(data.StoredFact).IsTerm() {
			termFactsSaved.Inc()
		}

	case EventFactDeleted:
		factsDeleted.Inc()

	case EventFactBoxMerged:
		partitionMerges.WithLabelValues("factbox").Inc()

	case EventGraphPromoted:
		partitionMerges.WithLabelValues("graph").Inc()
	}

	return nil
}
