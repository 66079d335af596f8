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
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Task is a function that can be queued on Slurm.
//
// Params must be nil or a pointer to a struct. Each exported field becomes a
// command line flag, named by the `flag` tag (or the lowercased field name)
// and documented by the `help` tag. The zero-th invocation on the login node
// and the re-invocation inside the job parse the same flags, so the field
// values travel through the rendered batch script unchanged.
type Task struct {
	Name   string
	Params any
	Run    func(ctx context.Context) error
}

func flagName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("flag"); ok {
		return tag
	}
	return strings.ToLower(field.Name)
}

// BindTaskFlags registers one flag per exported params field, bound to the
// field itself.
func BindTaskFlags(fs *pflag.FlagSet, params any) error {
	if params == nil {
		return nil
	}
	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("task params must be a pointer to struct, got %T", params)
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := flagName(field)
		help := field.Tag.Get("help")
		ptr := v.Field(i).Addr().Interface()

		switch p := ptr.(type) {
		case *string:
			fs.StringVar(p, name, *p, help)
		case *bool:
			fs.BoolVar(p, name, *p, help)
		case *int:
			fs.IntVar(p, name, *p, help)
		case *int64:
			fs.Int64Var(p, name, *p, help)
		case *uint32:
			fs.Uint32Var(p, name, *p, help)
		case *uint64:
			fs.Uint64Var(p, name, *p, help)
		case *float64:
			fs.Float64Var(p, name, *p, help)
		case *time.Duration:
			fs.DurationVar(p, name, *p, help)
		case *[]string:
			fs.StringSliceVar(p, name, *p, help)
		default:
			return fmt.Errorf("unsupported parameter type %s for field %s",
				field.Type, field.Name)
		}
	}
	return nil
}

// SerializeTaskFlags renders the current params values back into argv form,
// for the command line that the batch script re-invokes.
func SerializeTaskFlags(params any) ([]string, error) {
	if params == nil {
		return nil, nil
	}
	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("task params must be a pointer to struct, got %T", params)
	}
	v = v.Elem()
	t := v.Type()

	args := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := flagName(field)

		switch val := v.Field(i).Interface().(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, shellQuote(val)))
		case bool:
			args = append(args, fmt.Sprintf("--%s=%s", name, strconv.FormatBool(val)))
		case int:
			args = append(args, fmt.Sprintf("--%s=%d", name, val))
		case int64:
			args = append(args, fmt.Sprintf("--%s=%d", name, val))
		case uint32:
			args = append(args, fmt.Sprintf("--%s=%d", name, val))
		case uint64:
			args = append(args, fmt.Sprintf("--%s=%d", name, val))
		case float64:
			args = append(args, fmt.Sprintf("--%s=%s", name,
				strconv.FormatFloat(val, 'g', -1, 64)))
		case time.Duration:
			args = append(args, fmt.Sprintf("--%s=%s", name, val))
		case []string:
			for _, item := range val {
				args = append(args, fmt.Sprintf("--%s=%s", name, shellQuote(item)))
			}
		default:
			return nil, fmt.Errorf("unsupported parameter type %s for field %s",
				field.Type, field.Name)
		}
	}
	return args, nil
}

// shellQuote single-quotes a value when it contains characters the shell
// would otherwise interpret.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$`&|;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
