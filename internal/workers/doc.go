// Package workers sizes the preparser executors and the parser's playlist
// checks from the CPU quota.
//
// # Overview
//
// GOMAXPROCS follows the container CPU limit, so worker counts derived from
// it scale with the deployment instead of the host. [Count] multiplies
// GOMAXPROCS by a workload factor, never returns less than 1 and honours an
// optional upper bound.
//
// # Workload Profiles
//
//	| Function   | Multiplier | Used for                                        |
//	|------------|------------|-------------------------------------------------|
//	| [ForCPU]   | 1.0        | Thumbnail executor (decode, resize, encode)     |
//	| [ForIO]    | 2.0        | Parse and fetch executors, playlist entry stats |
//	| [ForMixed] | 1.5        | Work that alternates between the two            |
//
// Parse and fetch workers spend most of their time in file reads, ffprobe
// child processes and HTTP lookups, so they are oversubscribed. Thumbnail
// workers hold a decoded frame each; running more than one per CPU only
// raises peak memory.
//
// # Configured Values
//
// [Resolve] applies the configuration rule shared by PARSER_THREADS and
// THUMBNAILER_THREADS: a positive value is used as is (capped at the
// limit), zero or a negative value selects the automatic size.
//
//	parserWorkers := workers.Resolve(cfg.Preparser.ParserThreads, workers.ForIO, preparser.MaxThreads)
//	thumbWorkers := workers.Resolve(cfg.Preparser.ThumbnailerThreads, workers.ForCPU, preparser.MaxThreads)
//
// # Examples
//
// With GOMAXPROCS=4:
//
//	workers.ForCPU(0)   // 4
//	workers.ForIO(0)    // 8
//	workers.ForIO(6)    // 6
//	workers.ForMixed(0) // 6
//
// With GOMAXPROCS=1 (a 500m CPU limit rounds up to 1):
//
//	workers.ForCPU(0)   // 1
//	workers.ForIO(0)    // 2
package workers
