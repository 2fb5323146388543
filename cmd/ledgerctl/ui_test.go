package main

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		-1234567: "-1,234,567",
		10000000: "10,000,000",
	}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Fatalf("formatAmount(%d) = %q, want %q", in, got, want)
		}
	}
	if got := formatSigned(1500); got != "+1,500" {
		t.Fatalf("formatSigned = %q", got)
	}
}
