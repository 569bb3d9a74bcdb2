package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/preparser"
	"media-preparser/internal/startup"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type parseFlags struct {
	types    []string
	subitems bool
	interact bool
	timeout  time.Duration
	json     bool
}

// parseRecord is the printed outcome of one item.
type parseRecord struct {
	Path     string            `json:"path"`
	Status   string            `json:"status"`
	Type     string            `json:"type,omitempty"`
	Duration string            `json:"duration,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	Domains  map[string]string `json:"domains"`
	Subitems []string          `json:"subitems,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
	Elapsed  string            `json:"elapsed"`
}

func newParseCmd(opts *options) *cobra.Command {
	f := &parseFlags{}
	cmd := &cobra.Command{
		Use:   "parse PATH...",
		Short: "Preparse media items and print their metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, opts, f, args)
		},
	}
	cmd.Flags().StringSliceVarP(&f.types, "types", "t", []string{"parse"}, "Domains to run (parse, fetchmeta_local, fetchmeta_net, fetchmeta, thumbnail, all)")
	cmd.Flags().BoolVarP(&f.subitems, "subitems", "s", false, "List directory and playlist contents")
	cmd.Flags().BoolVar(&f.interact, "interact", false, "Allow workers to prompt")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-item deadline (0 uses the configured default)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print one JSON object per item")
	return cmd
}

func runParse(cmd *cobra.Command, opts *options, f *parseFlags, paths []string) error {
	flags, err := preparser.ParseTypes(f.types)
	if err != nil {
		return err
	}
	if flags.Domains() == 0 {
		return preparser.ErrNoDomain
	}

	pp, _, err := newPreparser(opts, flags.Domains(), func(c *startup.Config) {
		if f.timeout > 0 {
			c.Preparser.Timeout.Duration = f.timeout
		}
	})
	if err != nil {
		return err
	}
	defer pp.Delete()

	if f.subitems {
		flags |= preparser.OptionSubitems
	}
	if f.interact {
		flags |= preparser.OptionInteract
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		pp.Cancel(preparser.InvalidID)
	}()

	bar := newProgress(cmd.ErrOrStderr(), len(paths))
	printer := &recordPrinter{out: cmd.OutOrStdout(), json: f.json}

	var (
		g      errgroup.Group
		failed int
		mu     sync.Mutex
	)
	for _, path := range paths {
		g.Go(func() error {
			rec, err := parseOne(pp, path, flags)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if bar != nil {
				advance(bar)
			}
			mu.Lock()
			if rec.Status != preparser.StatusSuccess.String() {
				failed++
			}
			mu.Unlock()
			return printer.print(rec)
		})
	}
	err = g.Wait()
	if bar != nil {
		finish(bar)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d items did not parse successfully", failed, len(paths))
	}
	return nil
}

// parseOne submits path and waits for its callbacks.
func parseOne(pp *preparser.Preparser, path string, flags preparser.Type) (parseRecord, error) {
	if !strings.Contains(path, "://") {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	it := item.New(path)
	defer it.Release()

	rec := parseRecord{Path: path, Meta: map[string]string{}, Domains: map[string]string{}}
	done := make(chan preparser.ParseResult, 1)
	start := time.Now()

	_, err := pp.Push(it, flags, preparser.ParseCallbacks{
		OnSubtreeAdded: func(_ *item.Item, tree *item.Node, _ any) {
			tree.Walk(func(depth int, n *item.Node) {
				rec.Subitems = append(rec.Subitems, strings.Repeat("  ", depth)+n.Item.Name())
			})
		},
		OnEnded: func(_ *item.Item, res preparser.ParseResult, _ any) {
			done <- res
		},
	}, nil)
	if err != nil {
		return rec, err
	}
	res := <-done

	rec.Status = res.Status.String()
	rec.Elapsed = time.Since(start).Round(time.Millisecond).String()
	rec.Type = string(it.Type())
	if d := it.Duration(); d > 0 {
		rec.Duration = d.Round(time.Millisecond).String()
	}
	for k, v := range it.Metas() {
		rec.Meta[string(k)] = v
	}
	for d, dr := range res.Domains {
		rec.Domains[d.String()] = dr.Status.String()
		if dr.Err != nil {
			rec.Errors = append(rec.Errors, dr.Err.Error())
		}
	}
	sort.Strings(rec.Errors)
	return rec, nil
}

// recordPrinter serializes output from concurrent items.
type recordPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *recordPrinter) print(rec parseRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		return json.NewEncoder(p.out).Encode(rec)
	}

	fmt.Fprintf(p.out, "%s: %s", rec.Path, rec.Status)
	if rec.Type != "" {
		fmt.Fprintf(p.out, " [%s]", rec.Type)
	}
	fmt.Fprintf(p.out, " in %s\n", rec.Elapsed)

	domains := make([]string, 0, len(rec.Domains))
	for d, s := range rec.Domains {
		domains = append(domains, d+"="+s)
	}
	sort.Strings(domains)
	fmt.Fprintf(p.out, "  domains:  %s\n", strings.Join(domains, " "))
	if rec.Duration != "" {
		fmt.Fprintf(p.out, "  duration: %s\n", rec.Duration)
	}

	keys := make([]string, 0, len(rec.Meta))
	for k := range rec.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.out, "  %-13s %s\n", k+":", rec.Meta[k])
	}
	for _, e := range rec.Errors {
		fmt.Fprintf(p.out, "  error:    %s\n", e)
	}
	for _, s := range rec.Subitems {
		fmt.Fprintf(p.out, "  - %s\n", s)
	}
	_, err := fmt.Fprintln(p.out)
	return err
}

// newProgress returns nil unless w is a terminal.
// progress is the part of the progress bar the parse loop drives. Render
// errors only affect the bar, so they are logged and otherwise ignored.
type progress interface {
	Add(num int) error
	Finish() error
}

func advance(bar progress) {
	if err := bar.Add(1); err != nil {
		logging.Debug("progress: %v", err)
	}
}

func finish(bar progress) {
	if err := bar.Finish(); err != nil {
		logging.Debug("progress: %v", err)
	}
}

func newProgress(w io.Writer, total int) *progressbar.ProgressBar {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) || total < 2 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Preparsing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
