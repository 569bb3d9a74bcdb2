// Package handlers provides the HTTP API of the preparser service.
//
// It includes handlers for:
//   - Preparsing an item and waiting for its result ([Handlers.Preparse])
//   - Generating a JPEG thumbnail at a seek position ([Handlers.GetThumbnail])
//   - Listing and cancelling outstanding requests
//   - Health checks, version and metrics
//
// Each HTTP request maps to one preparser request. A client that disconnects
// cancels the preparser request it started.
package handlers
