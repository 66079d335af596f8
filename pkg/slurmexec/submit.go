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
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"gopkg.in/natefinch/lumberjack.v2"

	"SlurmExec/internal/util"
)

// submittedRe matches the normal sbatch acknowledgement, with or without
// the multi-cluster suffix.
var submittedRe = regexp.MustCompile(`Submitted batch job (\d+)(?: on cluster (\S+))?`)

// parsableRe matches sbatch --parsable output: "jobid[;cluster]".
var parsableRe = regexp.MustCompile(`^(\d+)(?:;(\S+))?$`)

type SubmitResult struct {
	JobID   uint32
	Cluster string

	// RawOutput is the trimmed combined output of the submission command.
	RawOutput string
}

// Client submits batch scripts through the external sbatch binary.
type Client struct {
	sbatchPath string
	audit      io.Writer
}

// NewClient resolves the submission binary and fails fast when it is not
// available, before any script is handed over.
func NewClient(config *util.Config) (*Client, error) {
	path, err := exec.LookPath(config.SbatchPath)
	if err != nil {
		return nil, util.WrapSlurmErr(util.ErrorSubmit,
			"sbatch not found (%s): %v", config.SbatchPath, err)
	}

	c := &Client{sbatchPath: path}
	if config.SubmitLog.Path != "" {
		c.audit = &lumberjack.Logger{
			Filename:   config.SubmitLog.Path,
			MaxSize:    config.SubmitLog.MaxSizeMb,
			MaxBackups: config.SubmitLog.MaxBackups,
			MaxAge:     config.SubmitLog.MaxAgeDays,
		}
	}
	return c, nil
}

func (c *Client) SbatchPath() string {
	return c.sbatchPath
}

// Submit hands scriptPath to sbatch and parses the allocated job id out of
// its output. A non-success exit status or unparseable output is surfaced
// with the scheduler's own message attached.
func (c *Client) Submit(ctx context.Context, scriptPath string, extraArgs ...string) (*SubmitResult, error) {
	args := append(append([]string{}, extraArgs...), scriptPath)
	cmd := exec.CommandContext(ctx, c.sbatchPath, args...)

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		c.record(scriptPath, 0, false, output)
		return nil, util.WrapSlurmErr(util.ErrorSubmit,
			"sbatch exited with error: %v: %s", err, output)
	}

	result, err := ParseSubmitOutput(output)
	if err != nil {
		c.record(scriptPath, 0, false, output)
		return nil, err
	}

	c.record(scriptPath, result.JobID, true, output)
	return result, nil
}

// ParseSubmitOutput extracts the job id from sbatch output. Both the
// human-readable acknowledgement and the --parsable form are accepted.
func ParseSubmitOutput(output string) (*SubmitResult, error) {
	result := &SubmitResult{RawOutput: output}

	m := submittedRe.FindStringSubmatch(output)
	if m == nil {
		m = parsableRe.FindStringSubmatch(output)
	}
	if m == nil {
		return nil, util.WrapSlurmErr(util.ErrorSubmit,
			"bad sbatch output: %s", output)
	}

	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil, util.WrapSlurmErr(util.ErrorSubmit,
			"bad job id in sbatch output: %s", output)
	}
	result.JobID = uint32(id)
	result.Cluster = m[2]
	return result, nil
}

// record appends one JSON line per submission attempt to the rotating
// audit log. Audit failures are logged, never fatal.
func (c *Client) record(scriptPath string, jobID uint32, ok bool, output string) {
	if c.audit == nil {
		return
	}

	line := ""
	line, _ = sjson.Set(line, "time", time.Now().Format(time.RFC3339))
	line, _ = sjson.Set(line, "user", util.CurrentUserName())
	line, _ = sjson.Set(line, "script", scriptPath)
	line, _ = sjson.Set(line, "ok", ok)
	if jobID != 0 {
		line, _ = sjson.Set(line, "job_id", jobID)
	}
	line, _ = sjson.Set(line, "output", output)

	if _, err := c.audit.Write([]byte(line + "\n")); err != nil {
		log.Debugf("Failed to write submit audit record: %v", err)
	}
}
