package playlist

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-preparser/internal/mediatypes"
)

// Playlist is a parsed playlist file.
type Playlist struct {
	Title   string
	Entries []Entry
}

// Entry is one playlist line.
type Entry struct {
	// Location is an absolute path or a URL.
	Location string
	Title    string
	// Duration is zero when the playlist does not say.
	Duration time.Duration
}

// Parse reads a playlist of the format implied by name's extension.
func Parse(r io.Reader, name, baseDir string) (*Playlist, error) {
	switch mediatypes.Ext(name) {
	case ".wpl":
		return ParseWPL(r, baseDir)
	case ".m3u", ".m3u8":
		return ParseM3U(r, baseDir)
	default:
		return nil, fmt.Errorf("unsupported playlist %q", name)
	}
}

// ParseM3U reads an M3U or extended M3U playlist. #EXTINF lines provide the
// title and duration of the next entry; other comments are skipped.
func ParseM3U(r io.Reader, baseDir string) (*Playlist, error) {
	pl := &Playlist{}
	var pending Entry

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimPrefix(line, "\ufeff")

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			pending = parseExtinf(strings.TrimPrefix(line, "#EXTINF:"))
			continue
		case strings.HasPrefix(line, "#PLAYLIST:"):
			pl.Title = strings.TrimSpace(strings.TrimPrefix(line, "#PLAYLIST:"))
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		pending.Location = resolve(line, baseDir)
		pl.Entries = append(pl.Entries, pending)
		pending = Entry{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pl, nil
}

// parseExtinf handles "<seconds>[ attrs],<title>".
func parseExtinf(s string) Entry {
	var e Entry
	head, title, found := strings.Cut(s, ",")
	if found {
		e.Title = strings.TrimSpace(title)
	}
	if fields := strings.Fields(head); len(fields) > 0 {
		if secs, err := strconv.ParseFloat(fields[0], 64); err == nil && secs > 0 {
			e.Duration = time.Duration(secs * float64(time.Second))
		}
	}
	return e
}

func resolve(loc, baseDir string) string {
	if strings.Contains(loc, "://") {
		return loc
	}
	loc = filepath.FromSlash(loc)
	if filepath.IsAbs(loc) || baseDir == "" {
		return filepath.Clean(loc)
	}
	return filepath.Join(baseDir, loc)
}
