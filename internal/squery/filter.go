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

package squery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	filterLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
		{Name: "Operator", Pattern: `=`},
		{Name: "Whitespace", Pattern: `\s+`},
	})
)

// Filter is a sequence of key=value conditions, all of which must hold,
// e.g. `state=RUNNING partition=gpu`.
type Filter struct {
	Terms []*Term `parser:"@@+"`
}

type Term struct {
	Key   string `parser:"@Ident '='"`
	Value Value  `parser:"@@"`
}

type Value interface{ v() string }

type StringVal struct {
	Value string `parser:"@String"`
}

func (val StringVal) v() string {
	return val.Value
}

type NumberVal struct {
	Value float64 `parser:"@Number"`
}

func (val NumberVal) v() string {
	return strconv.FormatFloat(val.Value, 'f', -1, 64)
}

type IdentVal struct {
	Value string `parser:"@Ident"`
} // If no quotes, it is an IdentVal

func (val IdentVal) v() string {
	return val.Value
}

func GetParser() *participle.Parser[Filter] {
	parser := participle.MustBuild[Filter](
		participle.Lexer(filterLexer),
		participle.Unquote("String"),
		participle.Union[Value](StringVal{}, NumberVal{}, IdentVal{}),
		participle.Elide("Whitespace"),
	)

	return parser
}

func ParseFilter(s string) (*Filter, error) {
	parser := GetParser()
	filter, err := parser.ParseString("", s)
	if err != nil {
		return nil, err
	}
	for _, term := range filter.Terms {
		if !validFilterKeys[term.Key] {
			return nil, fmt.Errorf("unknown filter key %q", term.Key)
		}
	}
	return filter, nil
}

var validFilterKeys = map[string]bool{
	"id": true, "name": true, "state": true, "partition": true,
	"user": true, "account": true, "nodelist": true,
}

// Matches applies every condition of the filter to one job row.
func (f *Filter) Matches(job *JobRow) bool {
	for _, term := range f.Terms {
		val := term.Value.v()
		switch term.Key {
		case "id":
			if strconv.FormatUint(uint64(job.JobID), 10) != val {
				return false
			}
		case "name":
			if job.Name != val {
				return false
			}
		case "state":
			if !strings.EqualFold(job.State, val) {
				return false
			}
		case "partition":
			if job.Partition != val {
				return false
			}
		case "user":
			if job.User != val {
				return false
			}
		case "account":
			if job.Account != val {
				return false
			}
		case "nodelist":
			if job.NodeList != val {
				return false
			}
		}
	}
	return true
}
