package lurch

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestArgs_Build(t *testing.T) {
	tests := []struct {
		name string
		in   Args
		want []string
	}{
		{
			name: "full contract",
			in:   Args{URL: "https://gronkh.tv/streams/1", Start: "1h", Stop: "1h5m"},
			want: []string{"--url", "https://gronkh.tv/streams/1", "--start", "1h", "--stop", "1h5m", "--json-data"},
		},
		{
			name: "omits empty offsets",
			in:   Args{URL: "u"},
			want: []string{"--url", "u", "--json-data"},
		},
		{
			name: "auto format is implicit",
			in:   Args{URL: "u", Format: DefaultFormat},
			want: []string{"--url", "u", "--json-data"},
		},
		{
			name: "optional flags",
			in:   Args{URL: "u", Chapter: 3, Format: "720p", MaxRate: 1.5},
			want: []string{"--url", "u", "--json-data", "--chapter", "3", "--format", "720p", "--max-rate", "1.5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.in.Build())
		})
	}
}

func TestArgs_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Args
		wantErr string
	}{
		{name: "ok", in: Args{URL: "u", Start: "10m", Stop: "1h"}},
		{name: "ok without offsets", in: Args{URL: "u"}},
		{name: "missing url", in: Args{}, wantErr: "url is required"},
		{name: "bad start", in: Args{URL: "u", Start: "ten minutes"}, wantErr: "invalid start offset"},
		{name: "negative stop", in: Args{URL: "u", Stop: "-5m"}, wantErr: "invalid stop offset"},
		{name: "stop before start", in: Args{URL: "u", Start: "1h", Stop: "30m"}, wantErr: "must be after start"},
		{name: "negative chapter", in: Args{URL: "u", Chapter: -1}, wantErr: "invalid chapter"},
		{name: "negative rate", in: Args{URL: "u", MaxRate: -2}, wantErr: "invalid max rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArgs_Build_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Args{
			URL:     rapid.StringMatching(`https://[a-z]{1,10}\.tv/[0-9]{1,5}`).Draw(t, "url"),
			Start:   rapid.SampledFrom([]string{"", "1m", "2h3m"}).Draw(t, "start"),
			Chapter: rapid.IntRange(0, 20).Draw(t, "chapter"),
		}
		got := a.Build()
		if got[0] != "--url" || got[1] != a.URL {
			t.Fatalf("argv must start with --url: %v", got)
		}
		n := 0
		for _, s := range got {
			if s == "--json-data" {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("--json-data appears %d times", n)
		}
		if (a.Start != "") != slices.Contains(got, "--start") {
			t.Fatalf("--start presence mismatch: %v", got)
		}
	})
}
