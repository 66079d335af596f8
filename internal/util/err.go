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

package util

import "fmt"

type SlurmCmdError = int

const (
	ErrorSuccess       SlurmCmdError = 0
	ErrorGeneric       SlurmCmdError = 1
	ErrorCmdArg        SlurmCmdError = 2
	ErrorSubmit        SlurmCmdError = 3
	ErrorBackend       SlurmCmdError = 4
	ErrorScriptParsing SlurmCmdError = 5
)

type SlurmError struct {
	Code    SlurmCmdError
	Message string
}

func (e *SlurmError) Error() string {
	return e.Message
}

func NewSlurmErr(code SlurmCmdError, message string) *SlurmError {
	return &SlurmError{Code: code, Message: message}
}

func WrapSlurmErr(code SlurmCmdError, format string, args ...any) *SlurmError {
	return &SlurmError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error back to the process exit code. Errors that did not
// come from this package exit with ErrorGeneric.
func ExitCode(err error) SlurmCmdError {
	if err == nil {
		return ErrorSuccess
	}
	if se, ok := err.(*SlurmError); ok {
		return se.Code
	}
	return ErrorGeneric
}
