// Package parser implements the preparser's parse domain for local files,
// directories and playlists.
//
// Audio metadata comes from embedded tags, video metadata from ffprobe and
// image dimensions from the image header. When sub-items are requested,
// directories yield their media entries and playlists yield the entries
// that still exist on disk.
package parser
