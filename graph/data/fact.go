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
Package data contains classes and functions to handle fact graph data.

Fact

A fact is an immutable triple (subject, predicate, object) of node ids. A
fact is never updated - it is only created or deleted.

Placement

Every stored fact resides in a placement. A placement is either a shared
FactBox (Graph is 0), a private Graph of a single owner (FactBox is the
owner's internal user id and Graph is set) or the reserved term box 0.
*/
package data

import (
	"fmt"
	"strings"
)

/*
Reserved predicates
*/
const (
	PredicateIsATermFor   = "$isATermFor"
	PredicateWasCreatedBy = "$wasCreatedBy"
	PredicateIsMemberOf   = "$isMemberOf"
	PredicateCanAccess    = "$canAccess"
	PredicateCanRead      = "$canRead"
	PredicateCanWrite     = "$canWrite"
)

/*
ReservedPredicatePrefix is the prefix of all reserved (system) predicates.
*/
const ReservedPredicatePrefix = "$"

/*
UserIDPrefix is the prefix of all user node ids.
*/
const UserIDPrefix = "us-"

/*
TermFactBox is the reserved FactBox id for terms.
*/
const TermFactBox = 0

/*
DeactivatedFactBox is the FactBox id of deactivated facts.
*/
const DeactivatedFactBox = -1

/*
Fact models a single fact.
*/
type Fact struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

/*
NewFact creates a new fact.
*/
func NewFact(subject, predicate, object string) Fact {
	return Fact{subject, predicate, object}
}

/*
Validate checks that all parts of a fact are set.
*/
func (f Fact) Validate() error {
	if f.Subject == "" || f.Predicate == "" || f.Object == "" {
		return fmt.Errorf("Fact needs a subject, predicate and object: %v", f)
	}
	return nil
}

/*
Triple returns the fact as a list of three strings.
*/
func (f Fact) Triple() []string {
	return []string{f.Subject, f.Predicate, f.Object}
}

/*
String returns a string representation of this fact.
*/
func (f Fact) String() string {
	return fmt.Sprintf("[%v %v %v]", f.Subject, f.Predicate, f.Object)
}

/*
Placement is the (FactBox, Graph) pair a fact resides in.
*/
type Placement struct {
	FactBox int64 `json:"factBox"`
	Graph   int64 `json:"graph,omitempty"` // 0 if the placement is not a private graph
}

/*
TermPlacement is the placement of all term facts.
*/
var TermPlacement = Placement{TermFactBox, 0}

/*
IsTerm returns if this placement is the term box.
*/
func (p Placement) IsTerm() bool {
	return p.FactBox == TermFactBox && p.Graph == 0
}

/*
IsGraph returns if this placement is a private graph.
*/
func (p Placement) IsGraph() bool {
	return p.Graph != 0
}

/*
IsSharedBox returns if this placement is a shared (non-term) FactBox.
*/
func (p Placement) IsSharedBox() bool {
	return p.Graph == 0 && p.FactBox > TermFactBox
}

/*
Owner returns the internal user id of the owner of a private graph.
*/
func (p Placement) Owner() int64 {
	if p.IsGraph() {
		return p.FactBox
	}
	return 0
}

/*
String returns a string representation of this placement.
*/
func (p Placement) String() string {
	if p.IsGraph() {
		return fmt.Sprintf("graph %v of user %v", p.Graph, p.FactBox)
	}
	return fmt.Sprintf("box %v", p.FactBox)
}

/*
StoredFact is a fact together with its placement.
*/
type StoredFact struct {
	Fact
	Placement
}

/*
IsUserID checks if a given node id is a user id.
*/
func IsUserID(id string) bool {
	return strings.HasPrefix(id, UserIDPrefix)
}

/*
IsReservedPredicate checks if a given predicate is a reserved predicate.
*/
func IsReservedPredicate(predicate string) bool {
	return strings.HasPrefix(predicate, ReservedPredicatePrefix)
}

/*
AccessPredicates are predicates which grant access to their object.
*/
var AccessPredicates = []string{PredicateCanAccess, PredicateCanRead, PredicateCanWrite}

/*
IsAccessGrantingPredicate checks if a given predicate changes who can
access a node.
*/
func IsAccessGrantingPredicate(predicate string) bool {
	if predicate == PredicateIsMemberOf {
		return true
	}
	for _, p := range AccessPredicates {
		if p == predicate {
			return true
		}
	}
	return false
}

/*
TransitiveMarker is the suffix which marks a predicate as transitive in a query.
*/
const TransitiveMarker = "*"

/*
StripModifiers returns the bare predicate of a query predicate. It unwraps
$latest(p) and $not(p) and removes a trailing transitive marker.
*/
func StripModifiers(predicate string) string {
	for _, mod := range []string{"$latest(", "$not("} {
		if strings.HasPrefix(predicate, mod) && strings.HasSuffix(predicate, ")") {
			predicate = predicate[len(mod) : len(predicate)-1]
			break
		}
	}

	return strings.TrimSuffix(strings.TrimSpace(predicate), TransitiveMarker)
}
