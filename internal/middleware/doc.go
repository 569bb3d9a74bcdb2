// Package middleware provides HTTP middleware for the preparser service.
//
// It includes:
//   - Request correlation ids ([RequestID])
//   - Structured access logging through the application logger ([Logger])
//   - Prometheus request metrics labelled by route template ([Metrics])
package middleware
