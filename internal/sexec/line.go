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
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ScriptArg struct {
	Name string
	Val  string
}

type LineProcessor interface {
	Process(line string, sh *[]string, args *[]ScriptArg) error
}

// For #SBATCH directives
type sLineProcessor struct {
}

func (s *sLineProcessor) Process(line string, sh *[]string, args *[]ScriptArg) error {
	split := strings.Fields(line)
	if len(split) == 3 {
		*args = append(*args, ScriptArg{Name: split[1], Val: split[2]})
	} else if len(split) == 2 {
		parts := strings.SplitN(split[1], "=", 2)
		if len(parts) == 2 {
			*args = append(*args, ScriptArg{Name: parts[0], Val: parts[1]})
		} else {
			*args = append(*args, ScriptArg{Name: parts[0]})
		}
	} else {
		return errors.New("fields out of bound")
	}
	return nil
}

// For #BSUB directives, translated to their sbatch equivalents
type lLineProcessor struct {
	mapping map[string]string
}

func (l *lLineProcessor) init() {
	l.mapping = map[string]string{
		"-J": "--job-name", "-o": "--output", "-e": "--error",
		"-nnode": "--nodes", "-n": "--ntasks-per-node", "-W": "--time",
		"-M": "--mem", "-cwd": "--chdir", "-q": "--partition", "-env": "--export",
	}
}

func (l *lLineProcessor) Process(line string, sh *[]string, args *[]ScriptArg) error {
	if l.mapping == nil {
		l.init()
	}
	split := strings.Fields(line)
	if len(split) == 3 {
		if name, ok := l.mapping[split[1]]; ok {
			val := split[2]
			if name == "--time" {
				val = ConvertLSFRuntimeLimit(val)
			}
			*args = append(*args, ScriptArg{Name: name, Val: val})
		} else {
			log.Warnf("LSF option %v is not supported", split[1])
		}
	} else {
		return fmt.Errorf("line `%v` is not supported by sexec", line)
	}
	return nil
}

func ConvertLSFRuntimeLimit(t string) string {
	if t == "" {
		return t
	}
	// [hour:]minute
	re := regexp.MustCompile(`^(?:(\d+):)?(\d+)$`)
	x := re.FindStringSubmatch(t)
	if x == nil {
		log.Warnf("Failed to parse LSF time format: %s", t)
		return t
	}
	H, M := x[1], x[2]
	if H == "" {
		H = "0"
	}
	return fmt.Sprintf("%s:%s:0", H, M)
}

// for sh commands
type defaultProcessor struct {
}

func (d *defaultProcessor) Process(line string, sh *[]string, args *[]ScriptArg) error {
	*sh = append(*sh, line)
	return nil
}
