/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"errors"
	"fmt"
	"testing"
)

func TestGraphError(t *testing.T) {

	err := &GraphError{ErrAuthorization, "us-123 on kv-1"}

	if err.Error() != "GraphError: Not authorized (us-123 on kv-1)" {
		t.Error("Unexpected result:", err)
		return
	}

	err = &GraphError{ErrInvalidQuery, ""}

	if err.Error() != "GraphError: Invalid query" {
		t.Error("Unexpected result:", err)
		return
	}

	err = NewGraphError(ErrPlacementInconsistency, "node %v in box %v", "foo", 5)

	if err.Error() != "GraphError: Inconsistent fact placement (node foo in box 5)" {
		t.Error("Unexpected result:", err)
		return
	}

	wrapped := fmt.Errorf("request failed: %w", err)

	if !IsError(wrapped, ErrPlacementInconsistency) || IsError(wrapped, ErrAuthorization) {
		t.Error("Unexpected result")
		return
	}

	if !errors.Is(wrapped, ErrPlacementInconsistency) {
		t.Error("Unexpected result")
		return
	}

	if IsError(errors.New("foo"), ErrAuthorization) {
		t.Error("Unexpected result")
		return
	}
}
