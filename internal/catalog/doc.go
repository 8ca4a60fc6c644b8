// Package catalog defines the contract between the pipeline and the external
// catalogs that announce releases and recommendations.
//
// Concrete sources live in subpackages (tmdb, feed). Multi merges several
// sources behind one Source so the pipeline fetches and caches them as a unit.
package catalog
