/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dbfunc

import (
	"context"
	"encoding/json"
	"fmt"

	"devt.de/krotik/ecal/parser"
	"devt.de/krotik/ecal/scope"
	"devt.de/krotik/linkedrecords/query"
)

/*
ResolveQueryFunc resolves a compound query to node ids. No authorization
checks are done.
*/
type ResolveQueryFunc struct {
	Resolver *query.Resolver
}

/*
Run executes the ECAL function.
*/
func (f *ResolveQueryFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("Function requires 1 parameter: compound query map")
	}

	if _, ok := args[0].(map[interface{}]interface{}); !ok {
		return nil, fmt.Errorf("Parameter must be a map")
	}

	raw, err := json.Marshal(scope.ConvertECALToJSONObject(args[0]))
	if err != nil {
		return nil, err
	}

	cq, err := query.ParseCompoundQuery(string(raw))
	if err != nil {
		return nil, err
	}

	res, err := f.Resolver.ResolveCompoundQueryToIds(context.Background(), cq)
	if err != nil {
		return nil, err
	}

	ret := make(map[interface{}]interface{}, len(res))

	for name, v := range res {
		switch ids := v.(type) {
		case []string:
			l := make([]interface{}, len(ids))
			for i, id := range ids {
				l[i] = id
			}
			ret[name] = l
		default:
			ret[name] = v
		}
	}

	return ret, nil
}

/*
DocString returns a descriptive string.
*/
func (f *ResolveQueryFunc) DocString() (string, error) {
	return "Resolves a compound query to node ids.", nil
}
