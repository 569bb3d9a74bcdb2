/*
Package preparser runs media items through parse, metadata fetch and
thumbnail workers on bounded per-domain executors.

A Preparser is created with New and torn down with Delete. Push submits an
item to one or more domains and GenerateThumbnail submits it to the
thumbnail domain with a seek argument. Both return a RequestID usable with
Cancel; InvalidID cancels everything.

# Callbacks

Every accepted request ends with exactly one OnEnded call, carrying one of
StatusSuccess, StatusTimeout, StatusInterrupted or StatusError. Callbacks
never run inside Push or GenerateThumbnail. A request that completes runs
its callbacks on the worker goroutine that finished last; a cancelled or
timed-out request runs them on a goroutine started by the preparser.

A Push request spanning several domains completes when all of them have
resolved. It succeeds when at least one domain succeeded and the per-domain
outcomes are in ParseResult.Domains.

Cancelling such a request after one of its domains already succeeded still
reports StatusSuccess, with the unresolved domains marked interrupted.
Otherwise a cancel reports StatusInterrupted, even if some domain had
already failed; that domain keeps its error in ParseResult.Domains.

# Item references

The preparser holds the item from submission until the request is terminal,
and each queued or running subjob holds its own reference until the worker
returns. After Delete returns no reference taken by the preparser remains.

# Workers

Parser, MetaFetcher and Thumbnailer implementations must return promptly
once their context is done. An error returned after cancellation is
reported as an interruption, and a panic as a failure of that domain only.
*/
package preparser
