/**
 * Copyright (c) 2024 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package slurmexec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"SlurmExec/internal/util"
)

const ScriptFileName = "_slurm_script.sh"

const defaultShebang = "#!/bin/bash -l"

type directive struct {
	name string
	val  string
}

// ScriptBuilder assembles an sbatch script: an ordered list of #SBATCH
// directives followed by shell commands. Setting a directive twice replaces
// the value in place, so command line overrides keep the script stable.
type ScriptBuilder struct {
	jobName     string
	fullJobName string
	dir         string
	shebang     string

	args     []directive
	argIdx   map[string]int
	commands []string
}

// NewScriptBuilder creates a builder for the given job. scriptDir defaults
// to ~/slurm/<jobName>.
func NewScriptBuilder(jobName, fullJobName, scriptDir string) *ScriptBuilder {
	if scriptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		scriptDir = filepath.Join(home, util.DefaultScriptDirName, jobName)
	} else {
		scriptDir = util.ExpandHomeDir(scriptDir)
	}

	b := &ScriptBuilder{
		jobName:     jobName,
		fullJobName: fullJobName,
		dir:         scriptDir,
		shebang:     defaultShebang,
		argIdx:      make(map[string]int),
	}
	b.Arg("--job-name", jobName)
	b.Output("%x_%j.log")

	if fullJobName == "" {
		b.Command(fmt.Sprintf("echo '# Executing job \"%s\".'", jobName))
	} else {
		b.Command(fmt.Sprintf("echo '# Executing job \"%s\" (%s).'", jobName, fullJobName))
	}
	return b
}

func (b *ScriptBuilder) JobName() string {
	return b.jobName
}

func (b *ScriptBuilder) Dir() string {
	return b.dir
}

func (b *ScriptBuilder) ScriptFile() string {
	return filepath.Join(b.dir, ScriptFileName)
}

func (b *ScriptBuilder) Arg(name, val string) *ScriptBuilder {
	if idx, ok := b.argIdx[name]; ok {
		b.args[idx].val = val
		return b
	}
	b.argIdx[name] = len(b.args)
	b.args = append(b.args, directive{name: name, val: val})
	return b
}

// Args upserts a set of directives in deterministic (sorted) order.
func (b *ScriptBuilder) Args(args map[string]string) *ScriptBuilder {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.Arg(name, args[name])
	}
	return b
}

// Output points both stdout and stderr of the job at filename under the
// script directory. Slurm filename patterns (%j and friends) are allowed.
func (b *ScriptBuilder) Output(filename string) *ScriptBuilder {
	out := filepath.Join(b.dir, filename)
	b.Arg("--output", out)
	b.Arg("--error", out)
	return b
}

// OutputPattern returns the configured --output value, still unexpanded.
func (b *ScriptBuilder) OutputPattern() string {
	val, _ := b.ArgValue("--output")
	return val
}

// ArgValue looks up a directive set on the builder.
func (b *ScriptBuilder) ArgValue(name string) (string, bool) {
	if idx, ok := b.argIdx[name]; ok {
		return b.args[idx].val, true
	}
	return "", false
}

func (b *ScriptBuilder) Command(command string) *ScriptBuilder {
	b.commands = append(b.commands, command)
	return b
}

func (b *ScriptBuilder) Commands(commands []string) *ScriptBuilder {
	b.commands = append(b.commands, commands...)
	return b
}

// Shebang replaces the default "#!/bin/bash -l" interpreter line, e.g. when
// the submitted script carries its own.
func (b *ScriptBuilder) Shebang(line string) *ScriptBuilder {
	b.shebang = line
	return b
}

// Script renders the batch script. The default login shell flag is kept so
// that ~/.bashrc is loaded and the user environment is set up inside the job.
func (b *ScriptBuilder) Script() string {
	var sb strings.Builder
	sb.WriteString(b.shebang)
	sb.WriteString("\n")
	if b.shebang == defaultShebang {
		sb.WriteString("# The -l flag makes the script run as if it were executed on the login node;\n")
		sb.WriteString("# this makes it so ~/.bashrc is loaded and the user environment is set up.\n")
	}
	sb.WriteString("#\n")
	sb.WriteString("# This script was generated by slurmexec.\n")
	sb.WriteString("#\n")

	for _, arg := range b.args {
		if arg.val == "" {
			sb.WriteString(fmt.Sprintf("#SBATCH %s\n", arg.name))
		} else if strings.HasPrefix(arg.name, "--") {
			sb.WriteString(fmt.Sprintf("#SBATCH %s=%s\n", arg.name, arg.val))
		} else {
			sb.WriteString(fmt.Sprintf("#SBATCH %s %s\n", arg.name, arg.val))
		}
	}

	sb.WriteString("\n")
	for _, command := range b.commands {
		sb.WriteString(command)
		sb.WriteString("\n")
	}
	sb.WriteString("\n# End of script\n")
	return sb.String()
}

// WriteScript renders the script into the script directory and returns the
// file path.
func (b *ScriptBuilder) WriteScript() (string, error) {
	path := b.ScriptFile()
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return "", util.WrapSlurmErr(util.ErrorGeneric,
			"failed to create script directory %s: %v", b.dir, err)
	}
	if err := os.WriteFile(path, []byte(b.Script()), 0755); err != nil {
		return "", util.WrapSlurmErr(util.ErrorGeneric,
			"failed to write script file %s: %v", path, err)
	}
	return path, nil
}

// ResolveOutputPattern expands the Slurm filename patterns this repository
// relies on: %x (job name), %j and %A (job id), %a (array task id) and %%.
// Unknown verbs are left intact.
func ResolveOutputPattern(pattern, jobName, jobID, taskID string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 == len(pattern) {
			sb.WriteByte(pattern[i])
			continue
		}
		i++
		switch pattern[i] {
		case '%':
			sb.WriteByte('%')
		case 'x':
			sb.WriteString(jobName)
		case 'j', 'A':
			sb.WriteString(jobID)
		case 'a':
			if taskID == "" {
				sb.WriteString("%a")
			} else {
				sb.WriteString(taskID)
			}
		default:
			sb.WriteByte('%')
			sb.WriteByte(pattern[i])
		}
	}
	return sb.String()
}
