// Package mediatypes maps file extensions to media types and MIME types.
//
// It has no dependencies outside the standard library so the item, parser,
// fetcher and thumbnail packages can all import it without cycles.
//
//	ext := mediatypes.Ext(filename)
//	switch mediatypes.GetFileType(ext) {
//	case mediatypes.FileTypeAudio:
//	    // read tags
//	case mediatypes.FileTypeVideo:
//	    // probe streams
//	}
package mediatypes
