package preparser

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		t    Type
		want string
	}{
		{0, "none"},
		{TypeParse, "parse"},
		{TypeFetchMetaAll, "fetchmeta_local|fetchmeta_net"},
		{TypeParse | TypeThumbnail | OptionSubitems, "parse|thumbnail|subitems"},
		{TypeParse | 0x100, "parse|0x100"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Type(%#x).String() = %q, want %q", uint32(tt.t), got, tt.want)
		}
	}
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      []string
		want    Type
		wantErr bool
	}{
		{in: []string{"parse"}, want: TypeParse},
		{in: []string{"Parse", " thumbnail "}, want: TypeParse | TypeThumbnail},
		{in: []string{"fetchmeta"}, want: TypeFetchMetaAll},
		{in: []string{"all", "subitems", "interact"}, want: domainMask | OptionSubitems | OptionInteract},
		{in: []string{""}, want: 0},
		{in: []string{"parse", "bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTypes(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTypes(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTypes(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestDomainsAndOptions(t *testing.T) {
	t.Parallel()

	flags := TypeParse | TypeFetchMetaNet | OptionInteract
	if flags.Domains() != TypeParse|TypeFetchMetaNet {
		t.Errorf("Domains() = %v", flags.Domains())
	}
	opts := optionsOf(flags)
	if !opts.Interact || opts.Subitems {
		t.Errorf("optionsOf() = %+v", opts)
	}
}

func TestSeekValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seek    SeekArg
		wantErr bool
	}{
		{name: "none", seek: SeekArg{}},
		{name: "time fast", seek: SeekToTime(5*time.Second, SeekFast)},
		{name: "time zero", seek: SeekToTime(0, SeekPrecise)},
		{name: "negative time", seek: SeekToTime(-time.Second, SeekFast), wantErr: true},
		{name: "position bounds", seek: SeekToPosition(1, SeekPrecise)},
		{name: "position above one", seek: SeekToPosition(1.01, SeekPrecise), wantErr: true},
		{name: "position NaN", seek: SeekToPosition(math.NaN(), SeekFast), wantErr: true},
		{name: "unknown type", seek: SeekArg{Type: 7}, wantErr: true},
		{name: "unknown speed", seek: SeekArg{Type: SeekTime, Speed: 3}, wantErr: true},
	}
	for _, tt := range tests {
		err := tt.seek.Validate()
		if tt.wantErr != (err != nil) {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidSeek) {
			t.Errorf("%s: error %v does not wrap ErrInvalidSeek", tt.name, err)
		}
	}
}

func TestSeekString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seek SeekArg
		want string
	}{
		{SeekArg{}, "none"},
		{SeekToTime(5*time.Second, SeekFast), "time:5000:fast"},
		{SeekToPosition(0.25, SeekPrecise), "pos:0.2500:precise"},
	}
	for _, tt := range tests {
		if got := tt.seek.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatusErr(t *testing.T) {
	t.Parallel()

	if StatusSuccess.Err() != nil {
		t.Error("success should map to nil")
	}
	if !errors.Is(StatusTimeout.Err(), ErrTimeout) ||
		!errors.Is(StatusInterrupted.Err(), ErrInterrupted) ||
		!errors.Is(StatusError.Err(), ErrFailed) {
		t.Error("status to sentinel mapping mismatch")
	}
	if StatusInterrupted.String() != "interrupted" {
		t.Errorf("String() = %q", StatusInterrupted.String())
	}
}
