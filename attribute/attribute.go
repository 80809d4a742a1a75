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
Package attribute contains the typed attribute payloads of LinkedRecords.

Every attribute id starts with a prefix which names its kind:

	kv-<uuid>  KeyValueAttribute  JSON value
	l-<uuid>   LongTextAttribute  text
	bl-<uuid>  BlobAttribute      binary data with content type

The kind of an id is parsed once and dispatched through a Registry which maps
each kind to its Type implementation.
*/
package attribute

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/graph/util"
	"github.com/google/uuid"
)

var logger = logutil.GetLogger("linkedrecords.attribute")

/*
Kind is the id prefix of an attribute type.
*/
type Kind string

/*
Known attribute kinds
*/
const (
	KindKeyValue Kind = "kv"
	KindLongText Kind = "l"
	KindBlob     Kind = "bl"
)

/*
KindOf returns the kind prefix of an attribute id.
*/
func KindOf(id string) (Kind, bool) {
	if i := strings.Index(id, "-"); i > 0 {
		return Kind(id[:i]), true
	}
	return "", false
}

/*
Attribute is a loaded attribute.
*/
type Attribute struct {
	ID    string      `json:"id"`
	Kind  Kind        `json:"-"`
	Value interface{} `json:"value"`
}

/*
Type models the storage of one kind of attribute.
*/
type Type interface {

	/*
		Kind returns the id prefix of this type.
	*/
	Kind() Kind

	/*
		Name returns the type name of this type (e.g. KeyValueAttribute).
	*/
	Name() string

	/*
		Create stores the value of a new attribute.
	*/
	Create(ctx context.Context, id string, value interface{}) (interface{}, error)

	/*
		Load loads the value of an attribute. Returns false if the attribute
		does not exist.
	*/
	Load(ctx context.Context, id string) (interface{}, bool, error)

	/*
		Reset removes all attributes of this type.
	*/
	Reset(ctx context.Context) error
}

/*
Registry maps attribute kinds to their types.
*/
type Registry struct {
	types  map[Kind]Type
	byName map[string]Type
	lock   *sync.RWMutex
}

/*
NewRegistry creates a new empty registry.
*/
func NewRegistry() *Registry {
	return &Registry{make(map[Kind]Type), make(map[string]Type), &sync.RWMutex{}}
}

/*
Register adds an attribute type to this registry.
*/
func (r *Registry) Register(t Type) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.types[t.Kind()] = t
	r.byName[t.Name()] = t
}

/*
Kinds returns all registered kinds.
*/
func (r *Registry) Kinds() []Kind {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var ret []Kind
	for k := range r.types {
		ret = append(ret, k)
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })

	return ret
}

/*
TypeOf returns the type of an attribute id.
*/
func (r *Registry) TypeOf(id string) (Type, error) {
	kind, ok := KindOf(id)

	r.lock.RLock()
	t, known := r.types[kind]
	r.lock.RUnlock()

	if !ok || !known {
		return nil, util.NewGraphError(util.ErrUnknownAttributeKind, id)
	}

	return t, nil
}

/*
TypeByName returns the type with a given type name.
*/
func (r *Registry) TypeByName(name string) (Type, error) {
	r.lock.RLock()
	t, ok := r.byName[name]
	r.lock.RUnlock()

	if !ok {
		return nil, util.NewGraphError(util.ErrUnknownAttributeKind, name)
	}

	return t, nil
}

/*
Create creates a new attribute of a given type name with a fresh id.
*/
func (r *Registry) Create(ctx context.Context, typeName string, value interface{}) (*Attribute, error) {
	t, err := r.TypeByName(typeName)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("%v-%v", t.Kind(), uuid.New())

	v, err := t.Create(ctx, id, value)
	if err != nil {
		return nil, err
	}

	logger.Debug("Created attribute ", id)

	return &Attribute{id, t.Kind(), v}, nil
}

/*
Load loads an attribute.
*/
func (r *Registry) Load(ctx context.Context, id string) (*Attribute, error) {
	t, err := r.TypeOf(id)
	if err != nil {
		return nil, err
	}

	v, ok, err := t.Load(ctx, id)
	if err == nil && !ok {
		err = util.NewGraphError(util.ErrUnknownAttribute, id)
	}

	if err != nil {
		return nil, err
	}

	return &Attribute{id, t.Kind(), v}, nil
}

/*
LoadAll loads a list of attributes. Ids of unknown kinds and missing
attributes are omitted from the result.
*/
func (r *Registry) LoadAll(ctx context.Context, ids []string) (map[string]*Attribute, error) {
	ret := make(map[string]*Attribute)

	for _, id := range ids {
		a, err := r.Load(ctx, id)

		if err != nil {
			if util.IsError(err, util.ErrUnknownAttributeKind) || util.IsError(err, util.ErrUnknownAttribute) {
				continue
			}
			return nil, err
		}

		ret[id] = a
	}

	return ret, nil
}

/*
Reset removes all attributes of all types.
*/
func (r *Registry) Reset(ctx context.Context) error {
	for _, k := range r.Kinds() {
		r.lock.RLock()
		t := r.types[k]
		r.lock.RUnlock()

		if err := t.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

/*
NewDefaultRegistry creates a registry with all known attribute types. Key
value and long text attributes are stored in the given fact storage, blobs
in the given blob store.
*/
func NewDefaultRegistry(gs graphstorage.Storage, blobs BlobStore) (*Registry, error) {
	r := NewRegistry()

	for _, newType := range []func(graphstorage.Storage) (Type, error){NewKeyValueType, NewLongTextType} {
		t, err := newType(gs)
		if err != nil {
			return nil, err
		}
		r.Register(t)
	}

	r.Register(NewBlobType(blobs))

	return r, nil
}
