// Package textutil provides title normalization used to match catalog entries
// against library subjects.
//
// Normalization folds case, strips diacritics and punctuation, collapses
// whitespace, and drops a leading English article so "The Matrix" and
// "matrix" compare equal.
package textutil
