package slurmexec

import (
	"testing"
)

func TestParseSubmitOutput(t *testing.T) {
	testCases := []struct {
		name        string
		output      string
		wantID      uint32
		wantCluster string
		expectErr   bool
	}{
		{
			name:   "normal acknowledgement",
			output: "Submitted batch job 123456",
			wantID: 123456,
		},
		{
			name:        "multi-cluster acknowledgement",
			output:      "Submitted batch job 123456 on cluster foo",
			wantID:      123456,
			wantCluster: "foo",
		},
		{
			name:   "acknowledgement after warnings",
			output: "sbatch: warning: something\nSubmitted batch job 7",
			wantID: 7,
		},
		{
			name:   "parsable form",
			output: "123456",
			wantID: 123456,
		},
		{
			name:        "parsable form with cluster",
			output:      "123456;foo",
			wantID:      123456,
			wantCluster: "foo",
		},
		{
			name:      "error output",
			output:    "sbatch: error: invalid partition specified",
			expectErr: true,
		},
		{
			name:      "empty output",
			output:    "",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseSubmitOutput(tc.output)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.JobID != tc.wantID {
				t.Errorf("JobID: got %d, want %d", result.JobID, tc.wantID)
			}
			if result.Cluster != tc.wantCluster {
				t.Errorf("Cluster: got %q, want %q", result.Cluster, tc.wantCluster)
			}
			if result.RawOutput != tc.output {
				t.Errorf("RawOutput: got %q", result.RawOutput)
			}
		})
	}
}
