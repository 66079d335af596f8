package slurmexec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScriptBuilderRendersDirectivesAndBody(t *testing.T) {
	b := NewScriptBuilder("train", "", "/tmp/slurm/train")
	b.Arg("--partition", "gpu")
	b.Arg("--time", "1:00:00")
	b.Command("python train.py")

	script := b.Script()

	wantLines := []string{
		"#!/bin/bash -l",
		"# This script was generated by slurmexec.",
		"#SBATCH --job-name=train",
		"#SBATCH --output=/tmp/slurm/train/%x_%j.log",
		"#SBATCH --error=/tmp/slurm/train/%x_%j.log",
		"#SBATCH --partition=gpu",
		"#SBATCH --time=1:00:00",
		`echo '# Executing job "train".'`,
		"python train.py",
		"# End of script",
	}
	for _, line := range wantLines {
		if !strings.Contains(script, line+"\n") {
			t.Errorf("script missing line %q:\n%s", line, script)
		}
	}
}

func TestScriptBuilderOverridesDirectiveInPlace(t *testing.T) {
	b := NewScriptBuilder("job", "", "/tmp/slurm/job")
	b.Arg("--partition", "cpu")
	b.Arg("--partition", "gpu")

	script := b.Script()
	if strings.Contains(script, "--partition=cpu") {
		t.Error("overridden value still present")
	}
	if strings.Count(script, "#SBATCH --partition=") != 1 {
		t.Errorf("expected exactly one partition directive:\n%s", script)
	}

	val, ok := b.ArgValue("--partition")
	if !ok || val != "gpu" {
		t.Fatalf("ArgValue: got %q, %v", val, ok)
	}
}

func TestScriptBuilderBareDirective(t *testing.T) {
	b := NewScriptBuilder("job", "", "/tmp/slurm/job")
	b.Arg("--hold", "")

	if !strings.Contains(b.Script(), "#SBATCH --hold\n") {
		t.Errorf("bare directive not rendered:\n%s", b.Script())
	}
}

func TestScriptBuilderCustomShebang(t *testing.T) {
	b := NewScriptBuilder("job", "", "/tmp/slurm/job")
	b.Shebang("#!/bin/sh")

	script := b.Script()
	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Errorf("custom shebang not used:\n%s", script)
	}
	if strings.Contains(script, "login node") {
		t.Error("login shell comment must only follow the default shebang")
	}
}

func TestScriptBuilderWriteScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "job")
	b := NewScriptBuilder("job", "", dir)

	path, err := b.WriteScript()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, ScriptFileName) {
		t.Fatalf("unexpected script path %q", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("script not written: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Error("script is not executable")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != b.Script() {
		t.Error("file content does not match rendered script")
	}
}

func TestResolveOutputPattern(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		taskID  string
		want    string
	}{
		{name: "job name and id", pattern: "%x_%j.log", want: "train_42.log"},
		{name: "array pattern", pattern: "%A_%a.out", taskID: "3", want: "42_3.out"},
		{name: "array id unknown yet", pattern: "%A_%a.out", want: "42_%a.out"},
		{name: "escaped percent", pattern: "100%%.log", want: "100%.log"},
		{name: "unknown verb kept", pattern: "%u.log", want: "%u.log"},
		{name: "trailing percent", pattern: "x%", want: "x%"},
		{name: "no verbs", pattern: "plain.log", want: "plain.log"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveOutputPattern(tc.pattern, "train", "42", tc.taskID)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
