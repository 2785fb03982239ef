package main

import (
	"testing"

	"x86lab/regval"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    regval.CpuMode
		wantErr bool
	}{
		{"real16", regval.Real16, false},
		{"protected32", regval.Protected32, false},
		{"long64", regval.Long64, false},
		{"bogus", 0, true},
	}

	for _, c := range cases {
		got, err := parseMode(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("parseMode(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
		}

		if err == nil && got != c.want {
			t.Fatalf("parseMode(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
