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
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/xlab/treeprint"

	"SlurmExec/internal/util"
)

type JobRow struct {
	JobID       uint32
	ArrayJobID  uint32
	ArrayTaskID string
	Name        string
	State       string
	Partition   string
	User        string
	Account     string
	NodeList    string
	TimeLimit   string
	StdOut      string
}

// Query runs `squeue --json`, parses the job list and renders it.
func Query() error {
	config := util.ParseConfig(FlagConfigFilePath)

	raw, err := runSqueue(config)
	if err != nil {
		return err
	}

	if FlagJson {
		fmt.Println(strings.TrimSpace(string(raw)))
		return nil
	}

	jobs, err := ParseJobList(raw)
	if err != nil {
		return err
	}
	jobs, err = applyFilters(jobs)
	if err != nil {
		return err
	}

	if FlagTree {
		printTree(jobs)
		return nil
	}
	printTable(jobs)
	return nil
}

func runSqueue(config *util.Config) ([]byte, error) {
	squeuePath, err := exec.LookPath(config.SqueuePath)
	if err != nil {
		return nil, util.WrapSlurmErr(util.ErrorBackend,
			"squeue not found (%s): %v", config.SqueuePath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, squeuePath, "--json")
	out, err := cmd.Output()
	if err != nil {
		msg := err.Error()
		if ee, ok := err.(*exec.ExitError); ok {
			msg = strings.TrimSpace(string(ee.Stderr))
		}
		return nil, util.WrapSlurmErr(util.ErrorBackend, "squeue failed: %s", msg)
	}
	return out, nil
}

// ParseJobList extracts the rows this tool shows from squeue JSON output.
// Field encodings differ between Slurm releases (plain numbers vs
// {set,number} wrappers, scalar vs list job_state), so every access goes
// through a tolerant getter.
func ParseJobList(raw []byte) ([]*JobRow, error) {
	parsed := gjson.ParseBytes(raw)
	jobsField := parsed.Get("jobs")
	if !jobsField.Exists() {
		return nil, util.NewSlurmErr(util.ErrorBackend,
			"unexpected squeue output: no jobs field")
	}

	jobs := make([]*JobRow, 0)
	jobsField.ForEach(func(_, job gjson.Result) bool {
		row := &JobRow{
			JobID:       uint32(numberField(job.Get("job_id"))),
			ArrayJobID:  uint32(numberField(job.Get("array_job_id"))),
			ArrayTaskID: arrayTaskField(job.Get("array_task_id")),
			Name:        job.Get("name").String(),
			State:       stateField(job.Get("job_state")),
			Partition:   job.Get("partition").String(),
			User:        job.Get("user_name").String(),
			Account:     job.Get("account").String(),
			NodeList:    job.Get("nodes").String(),
			StdOut:      job.Get("standard_output").String(),
		}
		if limit := numberField(job.Get("time_limit")); limit > 0 {
			row.TimeLimit = util.SecondTimeFormat(limit * 60)
		}
		jobs = append(jobs, row)
		return true
	})
	return jobs, nil
}

// numberField reads a plain number or the {set,infinite,number} wrapper
// newer releases emit.
func numberField(result gjson.Result) int64 {
	if result.IsObject() {
		if !result.Get("set").Bool() || result.Get("infinite").Bool() {
			return 0
		}
		return result.Get("number").Int()
	}
	return result.Int()
}

func stateField(result gjson.Result) string {
	if result.IsArray() {
		arr := result.Array()
		if len(arr) == 0 {
			return ""
		}
		return arr[0].String()
	}
	return result.String()
}

func arrayTaskField(result gjson.Result) string {
	if result.IsObject() {
		if !result.Get("set").Bool() {
			return ""
		}
		return result.Get("number").String()
	}
	return result.String()
}

func applyFilters(jobs []*JobRow) ([]*JobRow, error) {
	var filter *Filter
	if FlagFilter != "" {
		var err error
		filter, err = ParseFilter(FlagFilter)
		if err != nil {
			return nil, util.WrapSlurmErr(util.ErrorCmdArg, "invalid --filter value: %v", err)
		}
	}

	var jobIds []uint32
	if FlagFilterJobIDs != "" {
		var err error
		jobIds, err = util.ParseJobIdList(FlagFilterJobIDs, ",")
		if err != nil {
			return nil, util.WrapSlurmErr(util.ErrorCmdArg, "%v", err)
		}
	}

	selfUser := util.CurrentUserName()
	states := splitToSet(FlagFilterStates)
	names := splitToSet(FlagFilterNames)
	partitions := splitToSet(FlagFilterPartitions)

	filtered := make([]*JobRow, 0, len(jobs))
	for _, job := range jobs {
		if FlagSelf && job.User != selfUser {
			continue
		}
		if jobIds != nil && !containsId(jobIds, job.JobID) && !containsId(jobIds, job.ArrayJobID) {
			continue
		}
		if states != nil && !states[strings.ToUpper(job.State)] {
			continue
		}
		if names != nil && !names[job.Name] {
			continue
		}
		if partitions != nil && !partitions[job.Partition] {
			continue
		}
		if filter != nil && !filter.Matches(job) {
			continue
		}
		filtered = append(filtered, job)
	}
	return filtered, nil
}

func splitToSet(list string) map[string]bool {
	if list == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		set[strings.ToUpper(strings.TrimSpace(item))] = true
	}
	return set
}

func containsId(ids []uint32, id uint32) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func printTable(jobs []*JobRow) {
	table := tablewriter.NewWriter(os.Stdout)
	util.SetBorderlessTable(table)
	header := []string{"JobId", "Name", "Status", "Partition", "User",
		"Account", "TimeLimit", "NodeList"}
	if !FlagNoHeader {
		table.SetHeader(header)
	}

	tableData := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		id := strconv.FormatUint(uint64(job.JobID), 10)
		if job.ArrayTaskID != "" && job.ArrayJobID != 0 {
			id = fmt.Sprintf("%d_%s", job.ArrayJobID, job.ArrayTaskID)
		}
		tableData = append(tableData, []string{
			id,
			job.Name,
			job.State,
			job.Partition,
			job.User,
			job.Account,
			job.TimeLimit,
			job.NodeList,
		})
	}
	table.AppendBulk(tableData)
	table.Render()
}

// printTree groups array tasks under their parent job id.
func printTree(jobs []*JobRow) {
	tree := treeprint.NewWithRoot("Jobs")

	parents := make(map[uint32]treeprint.Tree)
	parentIds := make([]uint32, 0)
	for _, job := range jobs {
		if job.ArrayJobID == 0 || job.ArrayTaskID == "" {
			continue
		}
		if _, ok := parents[job.ArrayJobID]; !ok {
			parents[job.ArrayJobID] = tree.AddMetaBranch(job.ArrayJobID, job.Name)
			parentIds = append(parentIds, job.ArrayJobID)
		}
	}
	sort.Slice(parentIds, func(i, j int) bool { return parentIds[i] < parentIds[j] })

	for _, job := range jobs {
		if job.ArrayJobID != 0 && job.ArrayTaskID != "" {
			branch := parents[job.ArrayJobID]
			branch.AddNode(fmt.Sprintf("%d_%s [%s] %s",
				job.ArrayJobID, job.ArrayTaskID, job.State, job.NodeList))
			continue
		}
		tree.AddNode(fmt.Sprintf("%d %s [%s] %s",
			job.JobID, job.Name, job.State, job.NodeList))
	}

	fmt.Print(tree.String())
	if len(jobs) == 0 {
		log.Info("No job in the queue.")
	}
}
