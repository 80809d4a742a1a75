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
Package util contains utility classes for the fact graph.

GraphError

Models a fact graph related error. Domain errors (authorization failures,
invalid queries, inconsistent placements) are wrapped in a GraphError before
they are returned to a client. Errors of the underlying SQL storage are
returned as they are.
*/
package util

import (
	"errors"
	"fmt"
)

/*
GraphError is a fact graph related error
*/
type GraphError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (ge *GraphError) Error() string {
	if ge.Detail != "" {
		return fmt.Sprintf("GraphError: %v (%v)", ge.Type, ge.Detail)
	}

	return fmt.Sprintf("GraphError: %v", ge.Type)
}

/*
Unwrap returns the error type so errors.Is can be used on a GraphError.
*/
func (ge *GraphError) Unwrap() error {
	return ge.Type
}

/*
Storage related error types
*/
var (
	ErrOpening = errors.New("Failed to open fact storage")
	ErrClosing = errors.New("Failed to close fact storage")
)

/*
Fact graph related error types
*/
var (
	ErrInvalidData            = errors.New("Invalid data")
	ErrAuthorization          = errors.New("Not authorized")
	ErrInvalidQuery           = errors.New("Invalid query")
	ErrPlacementInconsistency = errors.New("Inconsistent fact placement")
	ErrUnknownAttributeKind   = errors.New("Unknown attribute kind")
	ErrUnknownAttribute       = errors.New("Unknown attribute")
	ErrRule                   = errors.New("Graph rule error")
)

/*
NewGraphError creates a new GraphError of a given type.
*/
func NewGraphError(errType error, detail string, args ...interface{}) *GraphError {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &GraphError{Type: errType, Detail: detail}
}

/*
IsError checks if a given error is a GraphError of a given type.
*/
func IsError(err error, errType error) bool {
	var ge *GraphError

	if errors.As(err, &ge) {
		return ge.Type == errType
	}

	return false
}
