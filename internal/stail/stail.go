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

package stail

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nxadm/tail"

	"SlurmExec/internal/util"
	"SlurmExec/pkg/slurmexec"
)

// ResolveLogFile asks scontrol for the job and expands the StdOut pattern
// into the actual log file path.
func ResolveLogFile(config *util.Config, jobId string) (string, error) {
	fields, err := showJob(config, jobId)
	if err != nil {
		return "", err
	}
	return logPathFromFields(jobId, fields)
}

// logPathFromFields expands the StdOut pattern of one scontrol job record.
// For an array task %A is the parent job id, reported as ArrayJobId.
func logPathFromFields(jobId string, fields map[string]string) (string, error) {
	stdOut := fields["StdOut"]
	if stdOut == "" {
		return "", util.NewSlurmErr(util.ErrorBackend,
			fmt.Sprintf("job %s has no StdOut path", jobId))
	}

	id := fields["JobId"]
	if arrayId := fields["ArrayJobId"]; arrayId != "" {
		id = arrayId
	}
	return slurmexec.ResolveOutputPattern(stdOut,
		fields["JobName"], id, fields["ArrayTaskId"]), nil
}

// showJob runs `scontrol show job <id> -o` and splits the one-line
// key=value output into a map.
func showJob(config *util.Config, jobId string) (map[string]string, error) {
	scontrolPath, err := exec.LookPath(config.ScontrolPath)
	if err != nil {
		return nil, util.WrapSlurmErr(util.ErrorBackend,
			"scontrol not found (%s): %v", config.ScontrolPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, scontrolPath, "show", "job", jobId, "-o")
	out, err := cmd.Output()
	if err != nil {
		msg := err.Error()
		if ee, ok := err.(*exec.ExitError); ok {
			msg = strings.TrimSpace(string(ee.Stderr))
		}
		return nil, util.WrapSlurmErr(util.ErrorBackend,
			"scontrol show job %s failed: %s", jobId, msg)
	}

	return parseJobFields(string(out)), nil
}

// parseJobFields splits scontrol -o output into its key=value tokens. Only
// the first occurrence of a key is kept.
func parseJobFields(out string) map[string]string {
	fields := make(map[string]string)
	for _, token := range strings.Fields(out) {
		if key, val, found := strings.Cut(token, "="); found {
			if _, ok := fields[key]; !ok {
				fields[key] = val
			}
		}
	}
	return fields
}

// TailLogFile streams the job log file to stdout until the job log ends or
// the user interrupts.
func TailLogFile(logPath string) error {
	config := tail.Config{
		Follow:    FlagFollow,
		ReOpen:    FlagFollow,
		Poll:      true, // log files usually live on a shared filesystem
		MustExist: !FlagFollow,
	}
	if !FlagFromStart {
		config.Location = &tail.SeekInfo{Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(logPath, config)
	if err != nil {
		return util.WrapSlurmErr(util.ErrorBackend, "failed to tail %s: %v", logPath, err)
	}
	defer t.Cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				return nil
			}
			if line.Err != nil {
				return util.WrapSlurmErr(util.ErrorBackend, "tail error: %v", line.Err)
			}
			fmt.Println(line.Text)
		case <-sigChan:
			return nil
		}
	}
}

func TailJob(jobId string) error {
	config := util.ParseConfig(FlagConfigFilePath)

	logPath, err := ResolveLogFile(config, jobId)
	if err != nil {
		return err
	}

	fmt.Printf("==> %s <==\n", logPath)
	return TailLogFile(logPath)
}
