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

package sexec

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"SlurmExec/internal/util"
	"SlurmExec/pkg/slurmexec"
)

const DefaultWrappedJobName = "sexec_job"

// ParseScript splits a job script into the #SBATCH/#BSUB directives and the
// shell body.
func ParseScript(path string, args *[]ScriptArg, sh *[]string) error {
	file, err := os.Open(path)
	if err != nil {
		return util.NewSlurmErr(util.ErrorScriptParsing, err.Error())
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			log.Errorf("Failed to close %s.\n", file.Name())
		}
	}(file)

	scanner := bufio.NewScanner(file)
	num := 0

	for scanner.Scan() {
		num++

		// Shebang
		if num == 1 && strings.HasPrefix(scanner.Text(), "#!") {
			*args = append(*args, ScriptArg{
				Name: "--interpreter",
				Val:  strings.TrimPrefix(scanner.Text(), "#!"),
			})
			continue
		}

		reS := regexp.MustCompile(`^#SBATCH`)
		reL := regexp.MustCompile(`^#BSUB`)
		var processor LineProcessor
		if reS.MatchString(scanner.Text()) {
			processor = &sLineProcessor{}
		} else if reL.MatchString(scanner.Text()) {
			processor = &lLineProcessor{}
		} else {
			processor = &defaultProcessor{}
		}
		err := processor.Process(scanner.Text(), sh, args)
		if err != nil {
			return util.NewSlurmErr(util.ErrorScriptParsing,
				fmt.Sprintf("Parsing error at line %d: %s", num, err))
		}
	}

	if err := scanner.Err(); err != nil {
		return util.WrapSlurmErr(util.ErrorScriptParsing,
			"Failed to read the script file: %v", err)
	}

	return nil
}

// BuildJob merges config defaults, script directives and command line flags
// into the canonical batch script. The command line has the highest
// priority, then the script, then the config.
func BuildJob(cmd *cobra.Command, args []string) (*slurmexec.ScriptBuilder, error) {
	config := util.ParseConfig(FlagConfigFilePath)

	scriptArgs := make([]ScriptArg, 0)
	body := make([]string, 0)
	jobName := DefaultWrappedJobName

	if FlagWrappedScript == "" {
		if err := ParseScript(args[0], &scriptArgs, &body); err != nil {
			return nil, err
		}
		jobName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	} else {
		body = append(body, FlagWrappedScript)
	}
	for _, arg := range scriptArgs {
		if arg.Name == "--job-name" || arg.Name == "-J" {
			jobName = arg.Val
		}
	}
	if cmd.Flags().Changed("job-name") {
		jobName = FlagJobName
	}

	fullJobName := ""
	if FlagWrappedScript == "" {
		path, err := filepath.Abs(args[0])
		if err != nil {
			path = args[0]
		}
		fullJobName = fmt.Sprintf("script %s", path)
	}

	scriptDir := FlagScriptDir
	if scriptDir == "" {
		scriptDir = filepath.Join(config.ScriptDir, jobName)
	}
	b := slurmexec.NewScriptBuilder(jobName, fullJobName, scriptDir)

	// Config defaults have the lowest priority.
	if config.DefaultPartition != "" {
		b.Arg("--partition", config.DefaultPartition)
	}
	if config.DefaultAccount != "" {
		b.Arg("--account", config.DefaultAccount)
	}
	if config.DefaultTimeLimit != "" {
		b.Arg("--time", config.DefaultTimeLimit)
	}
	b.Args(config.DefaultSbatchArgs)

	// Then the values read from the script file.
	for _, arg := range scriptArgs {
		switch arg.Name {
		case "--interpreter":
			b.Shebang("#!" + arg.Val)
		case "--job-name", "-J":
			// already applied
		case "--output", "-o":
			b.Arg("--output", arg.Val)
		case "--error", "-e":
			b.Arg("--error", arg.Val)
		default:
			b.Arg(arg.Name, arg.Val)
		}
	}

	// Finally the command line flags replace whatever the script set.
	if FlagPartition != "" {
		b.Arg("--partition", FlagPartition)
	}
	if FlagAccount != "" {
		b.Arg("--account", FlagAccount)
	}
	if FlagQos != "" {
		b.Arg("--qos", FlagQos)
	}
	if FlagTime != "" {
		b.Arg("--time", FlagTime)
	}
	if FlagMem != "" {
		b.Arg("--mem", FlagMem)
	}
	if cmd.Flags().Changed("nodes") {
		b.Arg("--nodes", strconv.FormatUint(uint64(FlagNodes), 10))
	}
	if cmd.Flags().Changed("cpus-per-task") {
		b.Arg("--cpus-per-task", strconv.FormatUint(uint64(FlagCpusPerTask), 10))
	}
	if cmd.Flags().Changed("ntasks-per-node") {
		b.Arg("--ntasks-per-node", strconv.FormatUint(uint64(FlagNtasksPerNode), 10))
	}
	if FlagChdir != "" {
		b.Arg("--chdir", FlagChdir)
	}
	if FlagExport != "" {
		b.Arg("--export", FlagExport)
	}
	if FlagArray != "" {
		b.Arg("--array", FlagArray)
	}
	if FlagDependency != "" {
		b.Arg("--dependency", FlagDependency)
	}
	if FlagMailType != "" {
		b.Arg("--mail-type", FlagMailType)
	}
	if FlagMailUser != "" {
		b.Arg("--mail-user", FlagMailUser)
	}
	if FlagHold {
		b.Arg("--hold", "")
	}
	if FlagOutput != "" {
		b.Arg("--output", FlagOutput)
	}
	if FlagError != "" {
		b.Arg("--error", FlagError)
	}

	if err := checkJobArgs(b); err != nil {
		return nil, err
	}

	outputSet := FlagOutput != ""
	for _, arg := range scriptArgs {
		if arg.Name == "--output" || arg.Name == "-o" {
			outputSet = true
		}
	}

	// Default log file convention when no output path was requested. The
	// array directive may come from the script, so the merged builder state
	// decides, not the command line flag.
	if !outputSet {
		if _, isArray := b.ArgValue("--array"); isArray {
			b.Output("%A_%a.out")
		} else {
			b.Output("%j.out")
		}
	}

	b.Commands(FlagPreRunCommands)
	b.Commands(body)
	return b, nil
}

// checkJobArgs validates the directives this layer understands before the
// script is handed to the scheduler.
func checkJobArgs(b *slurmexec.ScriptBuilder) error {
	if val, ok := b.ArgValue("--time"); ok {
		if _, err := util.ParseDurationStrToSeconds(val); err != nil {
			return util.WrapSlurmErr(util.ErrorCmdArg, "invalid --time value '%s': %v", val, err)
		}
	}
	if val, ok := b.ArgValue("--mem"); ok {
		if _, err := util.ParseMemStringAsByte(val); err != nil {
			return util.WrapSlurmErr(util.ErrorCmdArg, "invalid --mem value '%s': %v", val, err)
		}
	}
	if val, ok := b.ArgValue("--array"); ok {
		if _, err := util.ParseArraySpec(val); err != nil {
			return util.WrapSlurmErr(util.ErrorCmdArg, "invalid --array value '%s': %v", val, err)
		}
	}
	if val, ok := b.ArgValue("--mail-type"); ok {
		if err := util.CheckMailType(val); err != nil {
			return util.WrapSlurmErr(util.ErrorCmdArg, "%v", err)
		}
	}
	for _, name := range []string{"--output", "--error"} {
		if val, ok := b.ArgValue(name); ok {
			if err := util.CheckFileLength(val); err != nil {
				return util.WrapSlurmErr(util.ErrorCmdArg, "invalid %s path: %v", name, err)
			}
		}
	}
	return nil
}

// SubmitJob writes the rendered script and hands it to sbatch.
func SubmitJob(b *slurmexec.ScriptBuilder) error {
	config := util.ParseConfig(FlagConfigFilePath)

	scriptPath, err := b.WriteScript()
	if err != nil {
		return err
	}

	client, err := slurmexec.NewClient(config)
	if err != nil {
		return err
	}

	result, err := client.Submit(context.Background(), scriptPath)
	if err != nil {
		log.Error(err)
		return err
	}

	jobID := strconv.FormatUint(uint64(result.JobID), 10)
	logPath := slurmexec.ResolveOutputPattern(b.OutputPattern(), b.JobName(), jobID, "")

	if FlagParsable {
		if result.Cluster != "" {
			fmt.Printf("%s;%s\n", jobID, result.Cluster)
		} else {
			fmt.Println(jobID)
		}
		return nil
	}
	if FlagJson {
		out := ""
		out, _ = sjson.Set(out, "job_id", result.JobID)
		if result.Cluster != "" {
			out, _ = sjson.Set(out, "cluster", result.Cluster)
		}
		out, _ = sjson.Set(out, "script", scriptPath)
		out, _ = sjson.Set(out, "log", logPath)
		fmt.Println(out)
		return nil
	}

	fmt.Printf("Submitted batch job %s.\n", jobID)
	fmt.Printf("Script file: %s\n", scriptPath)
	fmt.Printf("Log file: %s\n", logPath)
	return nil
}

// RunLocal executes the script body immediately under a login shell, the
// sexec flavor of slurmexec debug mode. No sbatch is involved.
func RunLocal(b *slurmexec.ScriptBuilder) error {
	slurmexec.SetDebug(true)

	scriptPath, err := b.WriteScript()
	if err != nil {
		return err
	}

	logHostResources()

	cmd := exec.Command("bash", "-l", scriptPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		slurmexec.EnvJobID+"="+slurmexec.DebugJobID,
		"SLURM_JOB_NAME="+b.JobName(),
	)

	if err := cmd.Run(); err != nil {
		return util.WrapSlurmErr(util.ErrorGeneric, "local run failed: %v", err)
	}
	return nil
}

func logHostResources() {
	nCpu, err := cpu.Counts(true)
	if err != nil {
		log.Debugf("Failed to read host cpu count: %v", err)
		return
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Debugf("Failed to read host memory: %v", err)
		return
	}
	log.Infof("Running locally on %d CPUs, %.1f GiB memory (%.1f GiB available).",
		nCpu,
		float64(vm.Total)/(1024*1024*1024),
		float64(vm.Available)/(1024*1024*1024))
}
