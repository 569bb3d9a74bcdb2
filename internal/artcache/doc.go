// Package artcache persists artwork locations and network metadata
// responses in SQLite so repeated preparse requests for the same album or
// query skip the filesystem scan and the remote service.
package artcache
