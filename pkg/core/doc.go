// Package core defines the shared language of the leapgold system.
//
// This package contains:
//   - Scalar values and types (Value, ScalarType)
//   - Relations and their typed schemas (Relation, Column, Schema, Table)
//   - Committed results (MaterializedResult) and refresh reports
//   - Service interfaces (ResultStore, RunLog)
//   - The error taxonomy shared by the catalog, scheduler and engine
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
