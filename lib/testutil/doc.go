// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for strata packages.
//
// [Ramp] and [Constant] build arrays with predictable contents so
// tests can spot exactly which element a round-trip corrupted.
//
// [RequireEqualArrays] compares two arrays element-wise and fails the
// test with the dtype, shape, and first differing index.
//
// [TempContainer] creates an empty file in a per-test temporary
// directory for in-place update tests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
