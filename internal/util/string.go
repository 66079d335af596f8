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

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func ParseMemStringAsByte(mem string) (uint64, error) {
	re := regexp.MustCompile(`^([0-9]+(\.?[0-9]*))([MmGgKkB]?)$`)
	result := re.FindAllStringSubmatch(mem, -1)
	if result == nil || len(result) != 1 {
		return 0, fmt.Errorf("invalid memory format")
	}
	sz, err := strconv.ParseFloat(result[0][1], 64)
	if err != nil {
		return 0, err
	}
	switch result[0][len(result[0])-1] {
	case "M", "m":
		return uint64(1024 * 1024 * sz), nil
	case "G", "g":
		return uint64(1024 * 1024 * 1024 * sz), nil
	case "K", "k":
		return uint64(1024 * sz), nil
	case "B":
		return uint64(sz), nil
	}
	// default unit is MB
	return uint64(1024 * 1024 * sz), nil
}

// ParseDurationStrToSeconds parses "hh:mm:ss" or "day-hh:mm:ss".
func ParseDurationStrToSeconds(d string) (int64, error) {
	re := regexp.MustCompile(`^((\d+)-)?(\d+):(\d+):(\d+)$`)
	result := re.FindStringSubmatch(d)
	if result == nil {
		return 0, fmt.Errorf("time limit must follow the format [day-]hh:mm:ss")
	}
	var dd uint64
	if result[1] != "" {
		day, err := strconv.ParseUint(result[2], 10, 32)
		if err != nil {
			return 0, err
		}
		dd = day
	}
	hh, err := strconv.ParseUint(result[3], 10, 32)
	if err != nil {
		return 0, err
	}
	mm, err := strconv.ParseUint(result[4], 10, 32)
	if err != nil {
		return 0, err
	}
	ss, err := strconv.ParseUint(result[5], 10, 32)
	if err != nil {
		return 0, err
	}
	if mm > 59 || ss > 59 {
		return 0, fmt.Errorf("minute and second must be less than 60")
	}

	return int64(24*60*60*dd + 60*60*hh + 60*mm + ss), nil
}

func SecondTimeFormat(second int64) string {
	timeFormat := ""
	dd := second / 24 / 3600
	second %= 24 * 3600
	hh := second / 3600
	second %= 3600
	mm := second / 60
	ss := second % 60
	if dd > 0 {
		timeFormat = fmt.Sprintf("%d-%02d:%02d:%02d", dd, hh, mm, ss)
	} else {
		timeFormat = fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
	}
	return timeFormat
}

var mailTypeMapping = map[string]bool{
	"NONE": true, "BEGIN": true, "END": true, "FAIL": true,
	"REQUEUE": true, "ALL": true, "TIME_LIMIT": true, "ARRAY_TASKS": true,
}

func CheckMailType(param string) error {
	for _, t := range strings.Split(param, ",") {
		if !mailTypeMapping[strings.TrimSpace(t)] {
			return fmt.Errorf("invalid mail type: %s", t)
		}
	}
	return nil
}

// ParseArraySpec validates an sbatch --array expression and returns the
// number of tasks it expands to. Supported forms are "n", "n-m", "n-m:step"
// and comma separated combinations, each optionally followed by "%limit".
func ParseArraySpec(spec string) (uint32, error) {
	expr := spec
	if idx := strings.Index(expr, "%"); idx >= 0 {
		limit := expr[idx+1:]
		if _, err := strconv.ParseUint(limit, 10, 32); err != nil {
			return 0, fmt.Errorf("invalid array task limit %q", limit)
		}
		expr = expr[:idx]
	}
	if expr == "" {
		return 0, fmt.Errorf("empty array expression")
	}

	rangeRe := regexp.MustCompile(`^(\d+)(?:-(\d+)(?::(\d+))?)?$`)
	var count uint64
	for _, part := range strings.Split(expr, ",") {
		m := rangeRe.FindStringSubmatch(part)
		if m == nil {
			return 0, fmt.Errorf("invalid array range %q", part)
		}
		if m[2] == "" {
			count++
			continue
		}
		lo, _ := strconv.ParseUint(m[1], 10, 32)
		hi, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil || hi < lo {
			return 0, fmt.Errorf("invalid array range %q", part)
		}
		step := uint64(1)
		if m[3] != "" {
			step, err = strconv.ParseUint(m[3], 10, 32)
			if err != nil || step == 0 {
				return 0, fmt.Errorf("invalid array step in %q", part)
			}
		}
		count += (hi-lo)/step + 1
	}
	if count == 0 {
		return 0, fmt.Errorf("array expression %q expands to no task", spec)
	}
	return uint32(count), nil
}

func ParseJobIdList(jobIds string, splitStr string) ([]uint32, error) {
	idStrList := strings.Split(jobIds, splitStr)
	idList := make([]uint32, 0, len(idStrList))
	for _, idStr := range idStrList {
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid job id %q", idStr)
		}
		idList = append(idList, uint32(id))
	}
	return idList, nil
}
