// Package playlist reads WPL and M3U/M3U8 playlists into a flat list of
// entries. The parser uses it to expand playlists into sub-items.
package playlist
