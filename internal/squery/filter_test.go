package squery

import (
	"testing"
)

func TestParseFilter(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantTerms int
		expectErr bool
	}{
		{name: "single term", input: "state=RUNNING", wantTerms: 1},
		{name: "multiple terms", input: "state=RUNNING partition=gpu", wantTerms: 2},
		{name: "quoted value", input: `name="my job"`, wantTerms: 1},
		{name: "numeric value", input: "id=42", wantTerms: 1},
		{name: "unknown key", input: "color=red", expectErr: true},
		{name: "missing value", input: "state=", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			filter, err := ParseFilter(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", filter)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(filter.Terms) != tc.wantTerms {
				t.Fatalf("got %d terms, want %d", len(filter.Terms), tc.wantTerms)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	job := &JobRow{
		JobID:     42,
		Name:      "train",
		State:     "RUNNING",
		Partition: "gpu",
		User:      "alice",
		Account:   "lab",
		NodeList:  "node[1-2]",
	}

	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "id match", input: "id=42", want: true},
		{name: "id mismatch", input: "id=43", want: false},
		{name: "state is case insensitive", input: "state=running", want: true},
		{name: "all terms must hold", input: "state=RUNNING partition=cpu", want: false},
		{name: "conjunction match", input: "user=alice account=lab", want: true},
		{name: "quoted name", input: `name="train"`, want: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			filter, err := ParseFilter(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := filter.Matches(job); got != tc.want {
				t.Fatalf("Matches: got %v, want %v", got, tc.want)
			}
		})
	}
}
