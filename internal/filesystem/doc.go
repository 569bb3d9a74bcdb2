/*
Package filesystem wraps the os calls made by the preparser workers with
retries for NFS stale file handle errors (ESTALE).

# Overview

Media libraries are often mounted over NFS. When a file is replaced or the
server restarts, an open handle or cached dentry can go stale and the next
stat or read fails with ESTALE even though the path is valid. Repeating the
call makes the client revalidate the handle, and it usually succeeds.

Only ESTALE is retried. Every other error, including fs.ErrNotExist, is
returned at once so a missing file fails its domain immediately.

# Operations

  - [Stat]: os.Stat
  - [Open]: os.Open
  - [ReadDir]: os.ReadDir, used for directory sub-items
  - [WriteFile]: write to a temp file and rename over the target, used by
    the thumbnail and artwork caches

Every call takes a context: the backoff between attempts ends early when the
context is cancelled, so a cancelled or timed-out preparse request does not
sit in a retry loop.

	info, err := filesystem.Stat(ctx, path, filesystem.DefaultRetryConfig())

# Retry Policy

[DefaultRetryConfig] retries up to 3 times, starting at 50ms and doubling
up to 500ms between attempts. Callers with different needs pass their own
[RetryConfig].

# Metrics

Retry activity is reported through an [Observer] registered with
[SetObserver]; the metrics package provides the Prometheus-backed one. With
no observer registered nothing is recorded.

Each observation carries an operation name and a volume label. Volume labels
come from a [VolumeResolver] registered with [SetDefaultVolumeResolver] at
startup, mapping the media, cache and database directories to "media",
"cache" and "database" by longest prefix. Paths outside them are "unknown".
A RetryConfig may carry its own resolver.
*/
package filesystem
