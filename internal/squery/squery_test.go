package squery

import (
	"testing"
)

// Older releases emit plain numbers and a scalar job_state.
const squeueOutputOld = `{
  "jobs": [
    {
      "job_id": 101,
      "array_job_id": 0,
      "name": "train",
      "job_state": "RUNNING",
      "partition": "gpu",
      "user_name": "alice",
      "account": "lab",
      "nodes": "node1",
      "time_limit": 60,
      "standard_output": "/home/alice/slurm/train/%j.out"
    }
  ]
}`

// Newer releases wrap numbers in {set,infinite,number} and put job_state in
// a list.
const squeueOutputNew = `{
  "jobs": [
    {
      "job_id": {"set": true, "infinite": false, "number": 202},
      "array_job_id": {"set": true, "infinite": false, "number": 200},
      "array_task_id": {"set": true, "infinite": false, "number": 3},
      "name": "sweep",
      "job_state": ["PENDING"],
      "partition": "cpu",
      "user_name": "bob",
      "account": "lab",
      "nodes": "",
      "time_limit": {"set": false, "infinite": true, "number": 0},
      "standard_output": "/home/bob/slurm/sweep/%A_%a.out"
    }
  ]
}`

func TestParseJobListPlainEncoding(t *testing.T) {
	jobs, err := ParseJobList([]byte(squeueOutputOld))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	job := jobs[0]
	if job.JobID != 101 {
		t.Errorf("JobID: got %d", job.JobID)
	}
	if job.State != "RUNNING" {
		t.Errorf("State: got %q", job.State)
	}
	if job.TimeLimit != "01:00:00" {
		t.Errorf("TimeLimit: got %q", job.TimeLimit)
	}
	if job.ArrayTaskID != "" {
		t.Errorf("ArrayTaskID: got %q, want empty", job.ArrayTaskID)
	}
}

func TestParseJobListWrappedEncoding(t *testing.T) {
	jobs, err := ParseJobList([]byte(squeueOutputNew))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	job := jobs[0]
	if job.JobID != 202 {
		t.Errorf("JobID: got %d", job.JobID)
	}
	if job.ArrayJobID != 200 || job.ArrayTaskID != "3" {
		t.Errorf("array ids: got %d, %q", job.ArrayJobID, job.ArrayTaskID)
	}
	if job.State != "PENDING" {
		t.Errorf("State: got %q", job.State)
	}
	if job.TimeLimit != "" {
		t.Errorf("TimeLimit: infinite limit must stay empty, got %q", job.TimeLimit)
	}
}

func TestParseJobListRejectsUnexpectedOutput(t *testing.T) {
	if _, err := ParseJobList([]byte(`{"error": "not authorized"}`)); err == nil {
		t.Fatal("expected error for output without jobs field")
	}
	if _, err := ParseJobList([]byte("squeue: command error")); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}
