/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"context"
	"sync"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/attribute"
	"devt.de/krotik/linkedrecords/auth"
	"devt.de/krotik/linkedrecords/graph"
	"golang.org/x/sync/errgroup"
)

var logger = logutil.GetLogger("linkedrecords.query")

/*
Resolver resolves compound queries against the fact graph.
*/
type Resolver struct {
	gm    *graph.Manager
	ae    *auth.Engine
	attrs *attribute.Registry
}

/*
NewResolver creates a new query resolver.
*/
func NewResolver(gm *graph.Manager, ae *auth.Engine, attrs *attribute.Registry) *Resolver {
	return &Resolver{gm, ae, attrs}
}

/*
ResolveToIds resolves a list of patterns to the ids of all nodes which
satisfy every pattern. Patterns without a wildcard are ignored. A list
without usable patterns resolves to the empty set.
*/
func (r *Resolver) ResolveToIds(ctx context.Context, patterns []Pattern) ([]string, error) {
	var res []string
	var excluded []string
	resolved := false

	for _, p := range patterns {
		var ids []string
		var err error

		if p.SubjectSide() {
			ids, err = r.gm.SubjectClosure(ctx, p.BarePredicate(), p.Object)
		} else if p.ObjectSide() {
			ids, err = r.gm.ObjectsOf(ctx, p.Subject, p.BarePredicate(), p.Transitive())
		} else {
			continue
		}

		if err != nil {
			return nil, err
		}

		if p.Negated() {
			excluded = append(excluded, ids...)
			continue
		}

		if !resolved {
			res, resolved = ids, true
		} else {
			res = intersect(res, ids)
		}
	}

	if len(excluded) > 0 {
		res = subtract(res, excluded)
	}

	if res == nil {
		res = []string{}
	}

	return res, nil
}

/*
ResolveCompoundQueryToIds resolves all groups of a compound query in
parallel. The result maps each group name either to a literal id (string)
or to a list of ids ([]string).
*/
func (r *Resolver) ResolveCompoundQueryToIds(ctx context.Context, cq *CompoundQuery) (map[string]interface{}, error) {
	var lock sync.Mutex

	ret := make(map[string]interface{}, len(cq.Groups))

	g, gctx := errgroup.WithContext(ctx)

	for _, group := range cq.Groups {
		group := group

		if group.IsLiteral() {
			ret[group.Name] = group.Literal
			continue
		}

		g.Go(func() error {
			ids, err := r.ResolveToIds(gctx, group.Patterns)

			lock.Lock()
			ret[group.Name] = ids
			lock.Unlock()

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ret, nil
}

/*
ResolveToAttributes resolves a compound query for a user and loads the
attributes of all result ids which the user may read. Literal groups the
user cannot read are omitted from the result. Result ids which are not
attributes are dropped.
*/
func (r *Resolver) ResolveToAttributes(ctx context.Context, cq *CompoundQuery, userID string) (map[string]interface{}, error) {
	idres, err := r.ResolveCompoundQueryToIds(ctx, cq)
	if err != nil {
		return nil, err
	}

	// Collect all distinct ids

	var all []string
	seen := make(map[string]bool)

	addID := func(id string) {
		if !seen[id] {
			seen[id] = true
			all = append(all, id)
		}
	}

	for _, v := range idres {
		switch ids := v.(type) {
		case string:
			addID(ids)
		case []string:
			for _, id := range ids {
				addID(id)
			}
		}
	}

	allowed, err := r.ae.FilterAuthorizedNodes(ctx, userID, all, auth.ReadPayload)
	if err != nil {
		return nil, err
	}

	logger.Debug("Query for ", userID, " matched ", len(all), " nodes of which ", len(allowed), " are readable")

	attrs, err := r.attrs.LoadAll(ctx, allowed)
	if err != nil {
		return nil, err
	}

	ret := make(map[string]interface{}, len(idres))

	for name, v := range idres {
		switch ids := v.(type) {
		case string:
			if a, ok := attrs[ids]; ok {
				ret[name] = a
			}

		case []string:
			list := make([]*attribute.Attribute, 0, len(ids))

			for _, id := range ids {
				if a, ok := attrs[id]; ok {
					list = append(list, a)
				}
			}

			ret[name] = list
		}
	}

	return ret, nil
}

/*
intersect returns all elements of a which are also in b. The order of a is kept.
*/
func intersect(a []string, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}

	ret := make([]string, 0, len(a))
	for _, s := range a {
		if in[s] {
			ret = append(ret, s)
		}
	}

	return ret
}

/*
subtract returns all elements of a which are not in b.
*/
func subtract(a []string, b []string) []string {
	out := make(map[string]bool, len(b))
	for _, s := range b {
		out[s] = true
	}

	ret := make([]string, 0, len(a))
	for _, s := range a {
		if !out[s] {
			ret = append(ret, s)
		}
	}

	return ret
}
