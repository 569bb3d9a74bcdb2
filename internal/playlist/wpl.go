package playlist

import (
	"encoding/xml"
	"io"
	"strings"
)

// wpl mirrors the Windows Media Player playlist format (SMIL).
type wpl struct {
	XMLName xml.Name `xml:"smil"`
	Head    struct {
		Title string `xml:"title"`
	} `xml:"head"`
	Body struct {
		Seq struct {
			Media []struct {
				Src string `xml:"src,attr"`
			} `xml:"media"`
		} `xml:"seq"`
	} `xml:"body"`
}

// ParseWPL reads a WPL playlist. Relative sources resolve against baseDir.
func ParseWPL(r io.Reader, baseDir string) (*Playlist, error) {
	var doc wpl
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	pl := &Playlist{Title: strings.TrimSpace(doc.Head.Title)}
	for _, m := range doc.Body.Seq.Media {
		if m.Src == "" {
			continue
		}
		// WPL files written on Windows use backslashes
		src := strings.ReplaceAll(m.Src, "\\", "/")
		pl.Entries = append(pl.Entries, Entry{
			Location: resolve(src, baseDir),
		})
	}
	return pl, nil
}
