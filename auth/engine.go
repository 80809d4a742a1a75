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
Package auth contains the authorization engine of LinkedRecords.

Access to a node is derived from roles which a user holds for the node:

	term        - the node was declared as a term (read only)
	creator     - the node $wasCreatedBy the user
	owner       - the node is in a private graph of the user
	selfAccess  - the node is the user
	member      - the user (or a group the user $isMemberOf) holds
	              one of the role predicates towards the node

A Requirement combines roles. Any role satisfies a requirement unless the
requirement asks for all roles. Every requirement is checked with a single
SQL statement which combines one subselect per role.

Positive decisions are kept in a per-user Cache which is invalidated when
facts with reserved predicates are deleted.
*/
package auth

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
	"golang.org/x/sync/errgroup"
)

var logger = logutil.GetLogger("linkedrecords.auth")

/*
Role is a basis for access to a node.
*/
type Role string

/*
Known roles
*/
const (
	RoleTerm       Role = "term"
	RoleCreator    Role = "creator"
	RoleOwner      Role = "owner"
	RoleSelfAccess Role = "selfAccess"
	RoleMember     Role = "member"
)

/*
Requirement describes which roles grant access.
*/
type Requirement struct {
	Roles      []Role   // Roles which grant access
	Predicates []string // Role predicates for the member role
	All        bool     // Flag if all roles are required
}

/*
Key returns a stable key of this requirement which is used in the cache.
*/
func (r Requirement) Key() string {
	roles := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		roles[i] = string(role)
	}

	preds := append([]string(nil), r.Predicates...)

	sort.Strings(roles)
	sort.Strings(preds)

	op := "any"
	if r.All {
		op = "all"
	}

	return fmt.Sprintf("%v(%v|%v)", op, strings.Join(roles, ","), strings.Join(preds, ","))
}

/*
ReadPayload is the requirement for reading the payload of a node.
*/
var ReadPayload = Requirement{
	Roles:      []Role{RoleTerm, RoleCreator, RoleOwner, RoleSelfAccess, RoleMember},
	Predicates: []string{data.PredicateCanAccess, data.PredicateCanRead, data.PredicateCanWrite},
}

/*
ModifyPayload is the requirement for modifying the payload of a node.
*/
var ModifyPayload = Requirement{
	Roles:      []Role{RoleCreator, RoleOwner, RoleSelfAccess, RoleMember},
	Predicates: []string{data.PredicateCanAccess, data.PredicateCanWrite},
}

/*
Engine derives access decisions from the facts of a graph manager.
*/
type Engine struct {
	gm    *graph.Manager
	cache *Cache
}

/*
NewEngine creates a new authorization engine. The cache is optional.
*/
func NewEngine(gm *graph.Manager, cache *Cache) *Engine {
	return &Engine{gm, cache}
}

/*
Cache returns the cache of this engine (may be nil).
*/
func (e *Engine) Cache() *Cache {
	return e.cache
}

/*
IsAuthorized checks if a user satisfies a requirement for a node. The cache
is consulted first. Positive results of the database check are added to the
cache unless the user was invalidated while the check was running.
*/
func (e *Engine) IsAuthorized(ctx context.Context, userID string, node string, req Requirement) (bool, error) {

	if userID == "" || node == "" || len(req.Roles) == 0 {
		return false, nil
	}

	key := req.Key()

	if e.cache != nil && e.cache.IsCached(userID, node, key) {
		return true, nil
	}

	// Invalidations which happen during the check must not be overwritten
	// by its result

	var generation uint64

	if e.cache != nil {
		generation = e.cache.Generation(userID)
	}

	query, params := roleQuery(userID, node, req)

	var count int

	if err := graphstorage.Bind(e.gm.Storage()).QueryRowContext(ctx, query, params...).Scan(&count); err != nil {
		return false, err
	}

	if count > 0 && e.cache != nil {
		e.cache.AddIfCurrent(userID, node, key, generation)
	}

	return count > 0, nil
}

/*
IsAuthorizedToReadPayload checks if a user may read the payload of a node.
*/
func (e *Engine) IsAuthorizedToReadPayload(ctx context.Context, node string, userID string) (bool, error) {
	return e.IsAuthorized(ctx, userID, node, ReadPayload)
}

/*
IsAuthorizedToModifyPayload checks if a user may modify the payload of a node.
*/
func (e *Engine) IsAuthorizedToModifyPayload(ctx context.Context, node string, userID string) (bool, error) {
	return e.IsAuthorized(ctx, userID, node, ModifyPayload)
}

/*
IsAuthorizedToCreateFact checks if a user may create a given fact.
*/
func (e *Engine) IsAuthorizedToCreateFact(ctx context.Context, f data.Fact, userID string) (bool, error) {

	if userID == "" {
		return false, nil
	}

	switch {
	case f.Predicate == data.PredicateIsATermFor:
		return true, nil

	case f.Predicate == data.PredicateWasCreatedBy:

		if f.Object != userID {
			return false, nil
		}

		// Nobody can claim an existing node

		_, known, err := e.gm.PlacementOf(ctx, f.Subject)
		if !known || err != nil {
			return err == nil, err
		}

		return e.IsAuthorizedToModifyPayload(ctx, f.Subject, userID)

	case data.IsAccessGrantingPredicate(f.Predicate):
		return e.IsAuthorizedToModifyPayload(ctx, f.Object, userID)
	}

	ok, err := e.checkKnownNode(ctx, f.Subject, userID, ModifyPayload)
	if ok && err == nil {
		ok, err = e.checkKnownNode(ctx, f.Object, userID, ReadPayload)
	}

	return ok, err
}

/*
IsAuthorizedToDeleteFact checks if a user may delete a given fact.
*/
func (e *Engine) IsAuthorizedToDeleteFact(ctx context.Context, f data.Fact, userID string) (bool, error) {
	return e.IsAuthorizedToModifyPayload(ctx, f.Subject, userID)
}

/*
checkKnownNode checks a requirement for a node which has been used in facts
before. Unknown nodes and terms pass.
*/
func (e *Engine) checkKnownNode(ctx context.Context, node string, userID string, req Requirement) (bool, error) {

	if node == userID {
		return true, nil
	}

	_, known, err := e.gm.PlacementOf(ctx, node)
	if !known || err != nil {
		return err == nil, err
	}

	if term, err := e.gm.IsTerm(ctx, node); term || err != nil {
		return err == nil, err
	}

	return e.IsAuthorized(ctx, userID, node, req)
}

/*
Require returns an authorization error if a user does not satisfy a
requirement for a node.
*/
func (e *Engine) Require(ctx context.Context, userID string, node string, req Requirement) error {
	ok, err := e.IsAuthorized(ctx, userID, node, req)
	if err == nil && !ok {
		err = e.denied(userID, fmt.Sprintf("%v on %v", req.Key(), node))
	}
	return err
}

/*
RequireCreateFacts returns an authorization error if a user may not create
one of the given facts.
*/
func (e *Engine) RequireCreateFacts(ctx context.Context, facts []data.Fact, userID string) error {
	for _, f := range facts {
		ok, err := e.IsAuthorizedToCreateFact(ctx, f, userID)
		if err != nil {
			return err
		} else if !ok {
			return e.denied(userID, fmt.Sprint("create fact ", f))
		}
	}
	return nil
}

/*
RequireDeleteFacts returns an authorization error if a user may not delete
one of the given facts.
*/
func (e *Engine) RequireDeleteFacts(ctx context.Context, facts []data.Fact, userID string) error {
	for _, f := range facts {
		ok, err := e.IsAuthorizedToDeleteFact(ctx, f, userID)
		if err != nil {
			return err
		} else if !ok {
			return e.denied(userID, fmt.Sprint("delete fact ", f))
		}
	}
	return nil
}

/*
FilterAuthorizedNodes returns all nodes of a given list for which a user
satisfies a requirement. Nodes are checked in parallel. The order of the
given list is kept.
*/
func (e *Engine) FilterAuthorizedNodes(ctx context.Context, userID string, nodes []string, req Requirement) ([]string, error) {
	allowed := make([]bool, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU() * 2)

	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			ok, err := e.IsAuthorized(gctx, userID, node, req)
			allowed[i] = ok
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ret := make([]string, 0, len(nodes))
	for i, node := range nodes {
		if allowed[i] {
			ret = append(ret, node)
		}
	}

	return ret, nil
}

/*
denied logs and returns an authorization error.
*/
func (e *Engine) denied(userID string, detail string) error {
	logger.Warning(fmt.Sprintf("User %v is not authorized: %v", userID, detail))

	return &util.GraphError{Type: util.ErrAuthorization, Detail: fmt.Sprintf("%v: %v", userID, detail)}
}

/*
roleQuery builds the SQL statement which counts the role subselects that
return the node for the user.
*/
func roleQuery(userID string, node string, req Requirement) (string, []interface{}) {
	var selects []string
	var params []interface{}

	for _, role := range req.Roles {

		switch role {
		case RoleTerm:
			selects = append(selects, `SELECT subject AS node FROM facts
				WHERE subject = ? AND predicate = ? AND fact_box_id <> ?`)
			params = append(params, node, data.PredicateIsATermFor, data.DeactivatedFactBox)

		case RoleCreator:
			selects = append(selects, `SELECT subject AS node FROM facts
				WHERE subject = ? AND predicate = ? AND object = ? AND fact_box_id <> ?`)
			params = append(params, node, data.PredicateWasCreatedBy, userID, data.DeactivatedFactBox)

		case RoleOwner:

			// A private graph has the internal id of its owner as FactBox id. Terms
			// referenced from a private graph are not owned.

			selects = append(selects, `SELECT CAST(? AS TEXT) AS node WHERE EXISTS (SELECT 1 FROM facts
				WHERE (subject = ? OR object = ?) AND graph_id IS NOT NULL
				AND fact_box_id IN (SELECT _id FROM users WHERE id = ?))
				AND NOT EXISTS (SELECT 1 FROM facts WHERE subject = ? AND predicate = ?)`)
			params = append(params, node, node, node, userID, node, data.PredicateIsATermFor)

		case RoleSelfAccess:
			selects = append(selects, `SELECT CAST(? AS TEXT) AS node WHERE CAST(? AS TEXT) = CAST(? AS TEXT)`)
			params = append(params, node, node, userID)

		case RoleMember:
			if len(req.Predicates) == 0 {
				continue
			}

			selects = append(selects, fmt.Sprintf(`SELECT object AS node FROM facts
				WHERE object = ? AND predicate IN (%v) AND fact_box_id <> ?
				AND (subject = ? OR subject IN (SELECT object FROM facts
					WHERE subject = ? AND predicate = ? AND fact_box_id <> ?))`,
				strings.TrimSuffix(strings.Repeat("?, ", len(req.Predicates)), ", ")))

			params = append(params, node)
			for _, p := range req.Predicates {
				params = append(params, p)
			}
			params = append(params, data.DeactivatedFactBox, userID, userID,
				data.PredicateIsMemberOf, data.DeactivatedFactBox)
		}
	}

	if len(selects) == 0 {
		return "SELECT 0", nil
	}

	op := "\nUNION\n"
	if req.All {
		op = "\nINTERSECT\n"
	}

	return fmt.Sprintf("SELECT COUNT(*) FROM (%v) roles", strings.Join(selects, op)), params
}
