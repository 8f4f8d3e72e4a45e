package util

import "testing"

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "suffix abbreviation", input: "100 Main St", want: "100 main street"},
		{name: "already long form", input: "100 main street", want: "100 main street"},
		{name: "extra whitespace", input: "  2000   Welton   St ", want: "2000 welton street"},
		{name: "punctuation", input: "4201 E. Colfax Ave.", want: "4201 e colfax avenue"},
		{name: "boulevard", input: "1 Speer Blvd", want: "1 speer boulevard"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeAddress(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestSameAddress(t *testing.T) {
	if !SameAddress("100 Main St", "100 MAIN STREET") {
		t.Fatal("expected match")
	}
	if SameAddress("100 Main St", "200 Main St") {
		t.Fatal("unexpected match")
	}
	if SameAddress("", "") {
		t.Fatal("empty addresses must not match each other")
	}
}
