// Package pipeline turns a character photo and a product photo into a styled
// try-on image, and optionally a short video, by chaining provider requests
// through the fallback orchestrator and reporting each step to the progress
// tracker.
package pipeline
