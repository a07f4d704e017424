// Package orchestration runs a unit of work against the best available
// provider. Candidates are tried strictly one at a time in ascending priority
// order; the first success wins and every failure is collected so the caller
// receives a complete diagnostic report when no provider could serve the
// request.
package orchestration
