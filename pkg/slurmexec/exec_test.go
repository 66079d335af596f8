package slurmexec

import (
	"strings"
	"testing"
)

func TestHeaderCommands(t *testing.T) {
	plain := strings.Join(headerCommands(false), "\n")
	if !strings.Contains(plain, "$"+EnvJobID) {
		t.Errorf("job id line missing:\n%s", plain)
	}
	if strings.Contains(plain, EnvArrayJobID) {
		t.Errorf("plain job must not echo array variables:\n%s", plain)
	}

	array := strings.Join(headerCommands(true), "\n")
	for _, env := range []string{EnvJobID, EnvArrayJobID, EnvArrayTaskID} {
		if !strings.Contains(array, "$"+env) {
			t.Errorf("array job header missing $%s:\n%s", env, array)
		}
	}
}
