// Package item defines the media item handed to the preparser.
//
// Items are reference counted. The creator owns the first reference; every
// component that keeps an item beyond a call takes its own with Hold and
// gives it back with Release. Metadata and type fields are safe for
// concurrent use by the parser, fetcher and thumbnail workers.
package item
