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
Package ecal contains the main API for the event condition action language (ECAL).

Fact graph events are forwarded to ECAL sinks. Events are raised after the
change has been committed - a sink can react to a change but not prevent it.
*/
package ecal

import (
	"fmt"
	"strings"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/ecal/engine"
	"devt.de/krotik/ecal/util"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
)

/*
EventMapping is a mapping between fact graph event types and event kinds in ECAL.
*/
var EventMapping = map[int]string{

	/*
	   EventFactCreated is thrown when a fact was created.

	   State: subject, predicate, object, factbox, graph, actor
	*/
	graph.EventFactCreated: "lr.fact.created",

	/*
	   EventFactDeleted is thrown when a fact was deleted.

	   State: subject, predicate, object, factbox, graph, actor
	*/
	graph.EventFactDeleted: "lr.fact.deleted",

	/*
	   EventFactBoxMerged is thrown when a FactBox was merged into another FactBox.

	   State: keep, drop
	*/
	graph.EventFactBoxMerged: "lr.factbox.merged",

	/*
	   EventGraphPromoted is thrown when a private graph was moved into a FactBox.

	   State: owner, graph, factbox
	*/
	graph.EventGraphPromoted: "lr.graph.promoted",

	/*
	   EventFactsReset is thrown when all facts were deleted.

	   State: none
	*/
	graph.EventFactsReset: "lr.facts.reset",
}

/*
EventBridge is a rule for a graph manager to forward all graph events to ECAL.
*/
type EventBridge struct {
	Processor engine.Processor
	Logger    util.Logger
}

/*
Name returns the name of the rule.
*/
func (eb *EventBridge) Name() string {
	return "ecal.eventbridge"
}

/*
Handles returns a list of events which are handled by this rule.
*/
func (eb *EventBridge) Handles() []int {
	return []int{
		graph.EventFactCreated,
		graph.EventFactDeleted,
		graph.EventFactBoxMerged,
		graph.EventGraphPromoted,
		graph.EventFactsReset,
	}
}

/*
Handle handles an event.
*/
func (eb *EventBridge) Handle(gm *graph.Manager, event int, ed ...interface{}) error {
	var err error

	if name, ok := EventMapping[event]; ok {
		eventName := fmt.Sprintf("LinkedRecords: %v", name)
		eventKind := strings.Split(name, ".")

		// Construct an event which can be used to check if any rule will trigger.
		// This is to avoid the state construction below for events which would
		// not trigger any rules.

		if !eb.Processor.IsTriggering(engine.NewEvent(eventName, eventKind, nil)) {
			return nil
		}

		state := map[interface{}]interface{}{}

		switch event {
		case graph.EventFactCreated, graph.EventFactDeleted:
			sf := ed[0].(data.StoredFact)

			state["subject"] = sf.Subject
			state["predicate"] = sf.Predicate
			state["object"] = sf.Object
			state["factbox"] = float64(sf.FactBox)
			state["graph"] = float64(sf.Graph)
			state["actor"] = fmt.Sprint(ed[1])

		case graph.EventFactBoxMerged:
			state["keep"] = float64(ed[0].(int64))
			state["drop"] = float64(ed[1].(int64))

		case graph.EventGraphPromoted:
			p := ed[0].(data.Placement)

			state["owner"] = float64(p.Owner())
			state["graph"] = float64(p.Graph)
			state["factbox"] = float64(ed[1].(int64))
		}

		var m engine.Monitor
		m, err = eb.Processor.AddEventAndWait(engine.NewEvent(eventName, eventKind, state), nil)

		if err == nil {

			// Check if an error was raised in a sink

			if errs := m.(*engine.RootMonitor).AllErrors(); len(errs) > 0 {
				var errList []error

				for _, e := range errs {
					errList = append(errList, e)
				}

				err = &errorutil.CompositeError{Errors: errList}
			}
		}

		if err != nil {
			eb.Logger.LogDebug(fmt.Sprintf("LinkedRecords event %v was handled by ECAL and returned: %v", name, err))
		}
	}

	return err
}
