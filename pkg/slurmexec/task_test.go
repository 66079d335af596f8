package slurmexec

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type demoParams struct {
	Input    string        `flag:"input" help:"Input file"`
	Epochs   int           `flag:"epochs" help:"Number of epochs"`
	Rate     float64       `flag:"rate" help:"Learning rate"`
	Verbose  bool          `flag:"verbose" help:"Verbose output"`
	Timeout  time.Duration `flag:"timeout" help:"Per-step timeout"`
	Tags     []string      `flag:"tags" help:"Extra tags"`
	Untagged uint32        `help:"Falls back to the lowercased field name"`
}

func TestBindTaskFlagsParsesIntoFields(t *testing.T) {
	params := &demoParams{Epochs: 10, Rate: 0.1}
	fs := pflag.NewFlagSet("demo", pflag.ContinueOnError)
	if err := BindTaskFlags(fs, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := fs.Parse([]string{
		"--input=data.csv",
		"--epochs=50",
		"--verbose",
		"--timeout=90s",
		"--tags=a", "--tags=b",
		"--untagged=7",
	})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if params.Input != "data.csv" {
		t.Errorf("Input: got %q", params.Input)
	}
	if params.Epochs != 50 {
		t.Errorf("Epochs: got %d", params.Epochs)
	}
	if params.Rate != 0.1 {
		t.Errorf("Rate: default value lost, got %v", params.Rate)
	}
	if !params.Verbose {
		t.Error("Verbose: expected true")
	}
	if params.Timeout != 90*time.Second {
		t.Errorf("Timeout: got %v", params.Timeout)
	}
	if !reflect.DeepEqual(params.Tags, []string{"a", "b"}) {
		t.Errorf("Tags: got %v", params.Tags)
	}
	if params.Untagged != 7 {
		t.Errorf("Untagged: got %d", params.Untagged)
	}
}

func TestBindTaskFlagsRejectsNonStructParams(t *testing.T) {
	fs := pflag.NewFlagSet("demo", pflag.ContinueOnError)
	if err := BindTaskFlags(fs, 42); err == nil {
		t.Fatal("expected error for non-pointer params")
	}
	s := "x"
	if err := BindTaskFlags(fs, &s); err == nil {
		t.Fatal("expected error for pointer to non-struct")
	}
	if err := BindTaskFlags(fs, nil); err != nil {
		t.Fatalf("nil params must be accepted: %v", err)
	}
}

func TestSerializeTaskFlagsRoundTrip(t *testing.T) {
	params := &demoParams{
		Input:    "my data.csv",
		Epochs:   20,
		Rate:     0.5,
		Verbose:  true,
		Timeout:  time.Minute,
		Tags:     []string{"x", "y"},
		Untagged: 3,
	}

	args, err := SerializeTaskFlags(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"--input='my data.csv'",
		"--epochs=20",
		"--rate=0.5",
		"--verbose=true",
		"--timeout=1m0s",
		"--tags=x",
		"--tags=y",
		"--untagged=3",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
}

func TestSerializeTaskFlagsBoolExplicit(t *testing.T) {
	// A false bool must still be serialized so the re-invocation does not
	// fall back to the flag default.
	params := &struct {
		Verbose bool `flag:"verbose"`
	}{}
	args, err := SerializeTaskFlags(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 1 || args[0] != "--verbose=false" {
		t.Fatalf("got %v, want [--verbose=false]", args)
	}
}

func TestShellQuote(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{input: "plain", want: "plain"},
		{input: "", want: "''"},
		{input: "with space", want: "'with space'"},
		{input: "a$b", want: "'a$b'"},
		{input: "it's", want: `'it'\''s'`},
	}
	for _, tc := range testCases {
		if got := shellQuote(tc.input); got != tc.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
