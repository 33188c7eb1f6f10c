// Package registry resolves symbolic service names to live addresses through
// the central registry contract. Resolution is read-only and never retried: the
// service topology of an environment is assumed to be static.
//
// A Resolver memoises what it has resolved, but a fresh Resolver is built for
// every pipeline run, so no address outlives the run that looked it up.
package registry
