package util

import (
	"testing"
)

func TestParseMemStringAsByte(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      uint64
		expectErr bool
	}{
		{name: "default unit is MB", input: "100", want: 100 * 1024 * 1024},
		{name: "megabytes", input: "512M", want: 512 * 1024 * 1024},
		{name: "gigabytes lowercase", input: "2g", want: 2 * 1024 * 1024 * 1024},
		{name: "kilobytes", input: "8K", want: 8 * 1024},
		{name: "bytes", input: "4096B", want: 4096},
		{name: "fractional gigabytes", input: "1.5G", want: 1024 * 1024 * 1024 * 3 / 2},
		{name: "bad unit", input: "100T", expectErr: true},
		{name: "not a number", input: "abc", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMemStringAsByte(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseDurationStrToSeconds(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      int64
		expectErr bool
	}{
		{name: "hours minutes seconds", input: "1:30:00", want: 5400},
		{name: "with days", input: "2-00:00:30", want: 2*24*3600 + 30},
		{name: "zero", input: "0:00:00", want: 0},
		{name: "minute overflow", input: "0:61:00", expectErr: true},
		{name: "second overflow", input: "0:00:61", expectErr: true},
		{name: "missing seconds", input: "1:30", expectErr: true},
		{name: "garbage", input: "tomorrow", expectErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDurationStrToSeconds(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSecondTimeFormat(t *testing.T) {
	if got := SecondTimeFormat(5400); got != "01:30:00" {
		t.Fatalf("got %q, want 01:30:00", got)
	}
	if got := SecondTimeFormat(2*24*3600 + 30); got != "2-00:00:30" {
		t.Fatalf("got %q, want 2-00:00:30", got)
	}
}

func TestCheckMailType(t *testing.T) {
	if err := CheckMailType("BEGIN,END,FAIL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckMailType("SOMETIMES"); err == nil {
		t.Fatal("expected error for unknown mail type")
	}
}

func TestParseArraySpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      uint32
		expectErr bool
	}{
		{name: "single task", input: "7", want: 1},
		{name: "range", input: "1-10", want: 10},
		{name: "range with step", input: "0-10:2", want: 6},
		{name: "comma separated", input: "1,4,7", want: 3},
		{name: "mixed", input: "1-3,10", want: 4},
		{name: "with task limit", input: "1-100%10", want: 100},
		{name: "reversed range", input: "10-1", expectErr: true},
		{name: "zero step", input: "1-10:0", expectErr: true},
		{name: "bad limit", input: "1-10%x", expectErr: true},
		{name: "empty", input: "", expectErr: true},
		{name: "garbage", input: "a-b", expectErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseArraySpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseJobIdList(t *testing.T) {
	ids, err := ParseJobIdList("1, 2,30", ",")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 30 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if _, err := ParseJobIdList("1,x", ","); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
