package preparser

import (
	"fmt"
	"strings"
)

// Type is a combination of domain and option flags.
type Type uint32

// Domain flags select which workers process an item.
const (
	TypeParse          Type = 0x01
	TypeFetchMetaLocal Type = 0x02
	TypeFetchMetaNet   Type = 0x04
	TypeThumbnail      Type = 0x08
	TypeFetchMetaAll        = TypeFetchMetaLocal | TypeFetchMetaNet
)

// Option flags change worker behaviour without selecting a domain.
const (
	// OptionInteract allows workers to prompt the user.
	OptionInteract Type = 0x1000
	// OptionSubitems asks the parser to expand directories and playlists.
	OptionSubitems Type = 0x2000
)

const (
	domainMask = TypeParse | TypeFetchMetaLocal | TypeFetchMetaNet | TypeThumbnail
	optionMask = OptionInteract | OptionSubitems
)

// domainOrder is the fan-out order of a request's subjobs.
var domainOrder = []Type{TypeParse, TypeFetchMetaLocal, TypeFetchMetaNet, TypeThumbnail}

var flagNames = map[Type]string{
	TypeParse:          "parse",
	TypeFetchMetaLocal: "fetchmeta_local",
	TypeFetchMetaNet:   "fetchmeta_net",
	TypeThumbnail:      "thumbnail",
	OptionInteract:     "interact",
	OptionSubitems:     "subitems",
}

// Domains returns only the domain bits of t.
func (t Type) Domains() Type { return t & domainMask }

// Has reports whether every bit of f is set in t.
func (t Type) Has(f Type) bool { return t&f == f }

// String joins flag names with "|".
func (t Type) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []Type{TypeParse, TypeFetchMetaLocal, TypeFetchMetaNet, TypeThumbnail, OptionInteract, OptionSubitems} {
		if t.Has(f) {
			parts = append(parts, flagNames[f])
		}
	}
	if rest := t &^ (domainMask | optionMask); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseTypes converts flag names to a Type. Besides the names printed by
// String it accepts "fetchmeta" and "all".
func ParseTypes(names []string) (Type, error) {
	var t Type
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "all":
			t |= domainMask
			continue
		case "fetchmeta", "fetchmeta_all":
			t |= TypeFetchMetaAll
			continue
		}

		found := false
		for f, n := range flagNames {
			if n == name {
				t |= f
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown preparser type %q", raw)
		}
	}
	return t, nil
}

// Options are the option flags of a request, as seen by workers.
type Options struct {
	Interact bool
	Subitems bool
}

func optionsOf(t Type) Options {
	return Options{
		Interact: t.Has(OptionInteract),
		Subitems: t.Has(OptionSubitems),
	}
}
