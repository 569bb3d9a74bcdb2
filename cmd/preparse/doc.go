// Command preparse runs the preparser from the command line.
//
// It loads the same configuration as the server (the TOML file named by
// --config or PREPARSER_CONFIG, then environment overrides) but keeps no
// disk caches.
//
// # Commands
//
//	preparse parse [flags] PATH...      preparse items and print their metadata
//	preparse thumbnail [flags] PATH     write a JPEG thumbnail
//	preparse config init [PATH]         write an annotated example config
//	preparse config show                print the effective configuration
//	preparse version                    print build information
//
// parse submits every PATH at once and prints results as they complete.
// When stderr is a terminal a progress bar is shown. Ctrl+C cancels every
// outstanding request; their results are still printed as interrupted.
package main
