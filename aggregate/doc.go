// Package aggregate folds the event stream of a pipeline run into a Result
// keyed by stage identity and renders the mapping returned to callers.
package aggregate
