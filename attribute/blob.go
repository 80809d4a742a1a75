/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attribute

import (
	"context"
	"encoding/base64"
	"fmt"

	"devt.de/krotik/linkedrecords/graph/util"
)

/*
DefaultContentType is used for blobs which are created without content type.
*/
const DefaultContentType = "application/octet-stream"

/*
Blob is the value of a BlobAttribute. Data is encoded as base64 in JSON.
*/
type Blob struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

/*
BlobStore stores binary data under a key.
*/
type BlobStore interface {

	/*
		Put stores a blob.
	*/
	Put(ctx context.Context, key string, blob Blob) error

	/*
		Get retrieves a blob. Returns false if the blob does not exist.
	*/
	Get(ctx context.Context, key string) (Blob, bool, error)

	/*
		DeleteAll removes all blobs.
	*/
	DeleteAll(ctx context.Context) error
}

/*
blobType stores BlobAttributes in a BlobStore.
*/
type blobType struct {
	store BlobStore
}

/*
NewBlobType creates the type for BlobAttributes.
*/
func NewBlobType(store BlobStore) Type {
	return &blobType{store}
}

func (t *blobType) Kind() Kind {
	return KindBlob
}

func (t *blobType) Name() string {
	return "BlobAttribute"
}

/*
Create stores the value of a new attribute. The value is either a Blob, a
byte slice, a string or a JSON object with contentType and base64 encoded
data.
*/
func (t *blobType) Create(ctx context.Context, id string, value interface{}) (interface{}, error) {
	blob, err := toBlob(value)

	if err == nil {
		err = t.store.Put(ctx, id, blob)
	}

	return blob, err
}

/*
Load loads the value of an attribute.
*/
func (t *blobType) Load(ctx context.Context, id string) (interface{}, bool, error) {
	blob, ok, err := t.store.Get(ctx, id)
	if !ok || err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

/*
Reset removes all attributes of this type.
*/
func (t *blobType) Reset(ctx context.Context) error {
	return t.store.DeleteAll(ctx)
}

/*
toBlob converts a given value into a Blob.
*/
func toBlob(value interface{}) (Blob, error) {
	switch v := value.(type) {
	case Blob:
		if v.ContentType == "" {
			v.ContentType = DefaultContentType
		}
		return v, nil

	case []byte:
		return Blob{DefaultContentType, v}, nil

	case string:
		return Blob{"text/plain", []byte(v)}, nil

	case map[string]interface{}:
		ct := fmt.Sprint(v["contentType"])
		if _, ok := v["contentType"]; !ok {
			ct = DefaultContentType
		}

		data, err := base64.StdEncoding.DecodeString(fmt.Sprint(v["data"]))
		if err != nil {
			return Blob{}, util.NewGraphError(util.ErrInvalidData, "Blob data must be base64 encoded: %v", err)
		}

		return Blob{ct, data}, nil
	}

	return Blob{}, util.NewGraphError(util.ErrInvalidData, "Unsupported blob value %T", value)
}
