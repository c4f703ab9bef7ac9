// Package corpus loads the known question/response pairs and builds the
// TF-IDF vector space the matcher searches.
//
// An Index is immutable once built. It holds the fitted vocabulary, the
// inverse document frequencies and one unit-length vector per response, and
// may be shared across goroutines without locking.
package corpus
