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

// Package slurmexec turns a Go function into a Slurm batch job. A program
// declares a Task whose parameters are ordinary struct fields; running the
// program outside of Slurm renders a batch script that re-invokes the same
// binary and submits it with sbatch, while inside the allocated job the
// task function is simply called with the parsed parameters.
package slurmexec

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvJobID       = "SLURM_JOB_ID"
	EnvArrayJobID  = "SLURM_ARRAY_JOB_ID"
	EnvArrayTaskID = "SLURM_ARRAY_TASK_ID"

	// DebugJobID is reported by JobID when debug mode is on and the task
	// runs locally without a scheduler allocation.
	DebugJobID = "SLURM_DEBUG"
)

var debugMode = false

// SetDebug toggles debug mode. With debug on, tasks are executed
// immediately in the current process instead of being queued on Slurm.
func SetDebug(debug bool) {
	debugMode = debug

	if debug {
		fmt.Println()
		fmt.Println("=======================================================")
		fmt.Println("|   NOTICE - Slurm running in debug mode.")
		fmt.Println("|   All slurm tasks will be immediately executed")
		fmt.Println("|   rather than queued on Slurm.")
		fmt.Println("=======================================================")
		fmt.Println()
	}
}

func IsDebug() bool {
	return debugMode
}

// IsInsideJob reports whether the current process runs inside a Slurm
// allocation. Only the environment is consulted so that a task binary works
// on a compute node with no configuration deployed.
func IsInsideJob() bool {
	_, ok := os.LookupEnv(EnvJobID)
	return ok || debugMode
}

func JobID() string {
	if id, ok := os.LookupEnv(EnvJobID); ok {
		return id
	}
	if debugMode {
		return DebugJobID
	}
	return ""
}

func ArrayTaskID() (uint32, bool) {
	idStr, ok := os.LookupEnv(EnvArrayTaskID)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
