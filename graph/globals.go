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
Package graph contains the main API to the fact graph.

Manager API

The main API is provided by a Manager object which can be created with the
NewGraphManager() constructor function. The manager stores, finds and deletes
facts. Every fact which is stored passes through the FactBox allocator which
decides its placement.

Fact store

Facts are queried with a FactQuery. Subjects and objects can be given as
literal node ids or as [predicate, object] patterns. A pattern matches every
node which reaches the object by following the predicate transitively.
Multiple entries for the same field are intersected.

FactBox allocator

Facts are partitioned so that the subject and object of every fact live in
the same partition. A node which is only known to one user lives in a
private Graph of that user. As soon as nodes of different users are
connected the involved partitions are moved into a shared FactBox which
records its members. Terms (nodes declared with $isATermFor) live in the
reserved FactBox 0. Partitions are only ever merged, never split. Every
allocation runs in a database transaction and allocations are serialized.

Rules

Graph rules trigger on graph events. Rules are used to keep caches in sync,
notify subscribers and forward events to the scripting engine. Events are
raised after the corresponding change has been committed.
*/
package graph

// Graph events
//=============

/*
EventFactCreated is thrown when a fact was created.

Parameters: created fact (data.StoredFact), acting user id
*/
const EventFactCreated = 0x01

/*
EventFactDeleted is thrown when a fact was deleted.

Parameters: deleted fact (data.StoredFact), acting user id
*/
const EventFactDeleted = 0x02

/*
EventFactBoxMerged is thrown when a FactBox was merged into another FactBox.

Parameters: surviving FactBox id, merged FactBox id
*/
const EventFactBoxMerged = 0x03

/*
EventGraphPromoted is thrown when a private Graph was moved into a shared FactBox.

Parameters: previous placement of the graph (data.Placement), FactBox id
*/
const EventGraphPromoted = 0x04

/*
EventFactsReset is thrown when all facts were deleted.

Parameters: none
*/
const EventFactsReset = 0x05
