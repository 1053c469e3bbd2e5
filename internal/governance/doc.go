// Package governance holds the pure rules of baseline change-control: the baseline and
// certificate state resolvers, the protected field set, variation type inference and the
// folding of field edits onto baseline values. Nothing in this package talks to a store.
package governance
