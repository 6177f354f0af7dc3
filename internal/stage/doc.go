// Package stage defines the ordered pipeline stages and the result type each
// stage executor reports back to the orchestrator.
//
// Stages carry a fixed total order (Download first, Rendering last) and Next
// is the single source of truth for sequencing: checkpoint resume and the
// orchestrator loop both derive the following stage from it. Result is a
// closed set of outcomes (Success, Failure, Partial, Skipped); Map transforms
// payload-carrying outcomes and passes the others through untouched.
package stage
