// Package fetcher implements the preparser's two meta-fetch domains.
//
// Local looks for artwork next to the item (cover.jpg, folder.png and the
// like) and inside its tags. Network queries a JSON metadata service,
// throttled by a token bucket and deduplicated across concurrent requests
// for the same album. Both record what they find in the art cache so later
// items of the same album resolve without touching the disk or the network.
package fetcher
