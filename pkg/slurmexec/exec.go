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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"SlurmExec/internal/util"
)

// Options controls how a task is queued. Every option has a matching
// reserved command line flag which takes precedence, so a compiled task
// binary can be re-targeted without recompiling.
type Options struct {
	// JobName defaults to the task name.
	JobName string

	// ScriptDir is the directory for the rendered script and the job logs.
	// Defaults to <config ScriptDir>/<job name>.
	ScriptDir string

	// Parallel greater than 1 submits the task as a job array of that size.
	Parallel uint32

	// SbatchArgs are extra #SBATCH directives, e.g. "--time": "1-00:00:00".
	SbatchArgs map[string]string

	// PreRunCommands run inside the job before the task binary, e.g. to
	// activate an environment.
	PreRunCommands []string

	ConfigPath string
}

// Exec runs task when called inside a Slurm job (or in debug mode), and
// otherwise renders a batch script re-invoking this binary and submits it.
//
// Reserved flags parsed from os.Args, next to the task's own parameter
// flags: --slurm-job-name, --slurm-script-dir, --slurm-parallel,
// --slurm-debug and the repeatable --sbatch NAME=VALUE passthrough.
func Exec(task *Task, opts *Options) error {
	if task == nil || task.Run == nil {
		return util.NewSlurmErr(util.ErrorCmdArg, "task has no run function")
	}
	if opts == nil {
		opts = &Options{}
	}

	jobNameDefault := opts.JobName
	if jobNameDefault == "" {
		jobNameDefault = task.Name
	}
	parallelDefault := opts.Parallel
	if parallelDefault == 0 {
		parallelDefault = 1
	}

	fs := pflag.NewFlagSet(task.Name, pflag.ContinueOnError)
	if err := BindTaskFlags(fs, task.Params); err != nil {
		return util.WrapSlurmErr(util.ErrorCmdArg, "%v", err)
	}
	flagJobName := fs.String("slurm-job-name", jobNameDefault, "Name of the slurm job")
	flagScriptDir := fs.String("slurm-script-dir", opts.ScriptDir,
		"Directory for the rendered batch script and job logs")
	flagParallel := fs.Uint32("slurm-parallel", parallelDefault,
		"If >1 the task is submitted as a job array of this size")
	flagDebug := fs.Bool("slurm-debug", false,
		"Run the task locally instead of queueing it on Slurm")
	flagSbatchArgs := fs.StringArray("sbatch", nil,
		"Extra NAME=VALUE pairs passed through as #SBATCH directives")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return util.WrapSlurmErr(util.ErrorCmdArg, "%v", err)
	}

	if *flagDebug {
		SetDebug(true)
	}
	if IsInsideJob() {
		return task.Run(context.Background())
	}

	if *flagParallel == 0 {
		return util.NewSlurmErr(util.ErrorCmdArg, "--slurm-parallel must be > 0")
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = util.DefaultConfigPath
	}
	config := util.ParseConfig(configPath)

	exe, err := os.Executable()
	if err != nil {
		return util.WrapSlurmErr(util.ErrorGeneric, "failed to resolve executable: %v", err)
	}

	scriptDir := *flagScriptDir
	if scriptDir == "" {
		scriptDir = filepath.Join(config.ScriptDir, *flagJobName)
	}
	fullJobName := fmt.Sprintf("task %q in %s", task.Name, exe)
	builder := NewScriptBuilder(*flagJobName, fullJobName, scriptDir)

	if config.DefaultPartition != "" {
		builder.Arg("--partition", config.DefaultPartition)
	}
	if config.DefaultAccount != "" {
		builder.Arg("--account", config.DefaultAccount)
	}
	if config.DefaultTimeLimit != "" {
		builder.Arg("--time", config.DefaultTimeLimit)
	}
	builder.Args(config.DefaultSbatchArgs)
	builder.Args(opts.SbatchArgs)
	for _, pair := range *flagSbatchArgs {
		name, val, _ := strings.Cut(pair, "=")
		if !strings.HasPrefix(name, "-") {
			name = "--" + name
		}
		builder.Arg(name, val)
	}

	isArray := *flagParallel > 1
	if isArray {
		builder.Arg("--array", fmt.Sprintf("1-%d", *flagParallel))
		builder.Output("%A_%a.out")
	} else {
		builder.Output("%j.out")
	}

	builder.Commands(headerCommands(isArray))
	builder.Commands(opts.PreRunCommands)

	taskArgs, err := SerializeTaskFlags(task.Params)
	if err != nil {
		return util.WrapSlurmErr(util.ErrorCmdArg, "%v", err)
	}
	builder.Command(strings.Join(append([]string{exe}, taskArgs...), " "))

	scriptPath, err := builder.WriteScript()
	if err != nil {
		return err
	}

	client, err := NewClient(config)
	if err != nil {
		return err
	}
	result, err := client.Submit(context.Background(), scriptPath)

	printSubmitBanner(builder, scriptPath, result, err)
	return err
}

// headerCommands echo the allocation the job landed on into its log file.
func headerCommands(isArray bool) []string {
	commands := []string{
		`echo "# Slurm job name: $SLURM_JOB_NAME"`,
		`echo "# Slurm node: $SLURM_JOB_NODELIST"`,
		`echo "# Slurm cluster: $SLURM_CLUSTER_NAME"`,
		`echo "# Slurm job id: $` + EnvJobID + `"`,
	}
	if isArray {
		commands = append(commands,
			`echo "# Slurm array parent job id: $`+EnvArrayJobID+`"`,
			`echo "# Slurm array task id: $`+EnvArrayTaskID+`"`,
		)
	}
	return append(commands,
		`echo "# Job start time: $(date)"`,
		`echo`,
	)
}

// printSubmitBanner reports the submission outcome in the classic boxed
// form, including the derived log file path on success.
func printSubmitBanner(b *ScriptBuilder, scriptPath string, result *SubmitResult, err error) {
	fmt.Println()
	fmt.Println("*===============================================================================*")
	fmt.Printf("|   Executing Slurm job with name \"%s\"...\n", b.JobName())
	if b.fullJobName != "" {
		fmt.Printf("|      (%s)\n", b.fullJobName)
	}
	fmt.Println("|")

	if err == nil {
		jobID := strconv.FormatUint(uint64(result.JobID), 10)
		fmt.Println("|   Status: SUCCESS")
		fmt.Printf("|   Slurm job id: %s\n", jobID)
		fmt.Printf("|   Script file: %s\n", scriptPath)
		fmt.Printf("|   Log file: %s\n",
			ResolveOutputPattern(b.OutputPattern(), b.JobName(), jobID, ""))
	} else {
		fmt.Println("|   Status: FAIL [!!!]")
		fmt.Printf("|   Script file: %s\n", scriptPath)
		fmt.Println("|   Error: Bad sbatch output:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("|   %s\n", line)
		}
	}

	fmt.Println("|")
	fmt.Println("*===============================================================================*")
	fmt.Println()
}
