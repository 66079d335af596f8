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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"SlurmExec/internal/util"
)

var (
	FlagNodes         uint32
	FlagCpusPerTask   uint32
	FlagNtasksPerNode uint32
	FlagTime          string
	FlagMem           string
	FlagPartition     string
	FlagJobName       string
	FlagAccount       string
	FlagQos           string
	FlagChdir         string
	FlagExport        string
	FlagOutput        string
	FlagError         string
	FlagArray         string
	FlagDependency    string
	FlagMailType      string
	FlagMailUser      string
	FlagHold          bool

	FlagWrappedScript  string
	FlagScriptDir      string
	FlagPreRunCommands []string
	FlagDebugRun       bool
	FlagParsable       bool
	FlagJson           bool
	FlagConfigFilePath string

	RootCmd = &cobra.Command{
		Use:     "sexec [flags] script_file",
		Short:   "Submit a batch script to Slurm",
		Version: util.Version(),
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return err
			}
			if len(args) == 0 && FlagWrappedScript == "" {
				return fmt.Errorf("either a script file or --wrap must be given")
			}
			if len(args) == 1 && FlagWrappedScript != "" {
				return fmt.Errorf("a script file and --wrap are mutually exclusive")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			b, err := BuildJob(cmd, args)
			if err != nil {
				log.Error(err)
				os.Exit(util.ExitCode(err))
			}

			if FlagDebugRun {
				err = RunLocal(b)
			} else {
				err = SubmitJob(b)
			}
			os.Exit(util.ExitCode(err))
		},
	}
)

func ParseCmdArgs() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ErrorGeneric)
	}
}

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFilePath, "config", "C",
		util.DefaultConfigPath, "Path to configuration file")
	RootCmd.Flags().Uint32VarP(&FlagNodes, "nodes", "N", 1, "Number of nodes on which to run")
	RootCmd.Flags().Uint32VarP(&FlagCpusPerTask, "cpus-per-task", "c", 1, "Number of cpus required per task")
	RootCmd.Flags().Uint32Var(&FlagNtasksPerNode, "ntasks-per-node", 1, "Number of tasks to invoke on each node")
	RootCmd.Flags().StringVarP(&FlagTime, "time", "t", "", "Time limit, format: \"[day-]hours:minutes:seconds\"")
	RootCmd.Flags().StringVar(&FlagMem, "mem", "", "Minimum amount of real memory, support GB(G, g), MB(M, m), KB(K, k) and Bytes(B), default unit is MB")
	RootCmd.Flags().StringVarP(&FlagPartition, "partition", "p", "", "Partition requested")
	RootCmd.Flags().StringVarP(&FlagJobName, "job-name", "J", "", "Name of job")
	RootCmd.Flags().StringVarP(&FlagAccount, "account", "A", "", "Account used for the job")
	RootCmd.Flags().StringVarP(&FlagQos, "qos", "q", "", "QoS used for the job")
	RootCmd.Flags().StringVarP(&FlagChdir, "chdir", "D", "", "Working directory of the job")
	RootCmd.Flags().StringVar(&FlagExport, "export", "", "Propagate environment variables")
	RootCmd.Flags().StringVarP(&FlagOutput, "output", "o", "", "Redirection path of standard output of the script")
	RootCmd.Flags().StringVarP(&FlagError, "error", "e", "", "Redirection path of standard error of the script")
	RootCmd.Flags().StringVarP(&FlagArray, "array", "a", "", "Submit as a job array, e.g. 1-10, 1-10:2 or 1,4,7, optionally with %limit")
	RootCmd.Flags().StringVarP(&FlagDependency, "dependency", "d", "", "Defer the start of this job until the dependency is satisfied, e.g. afterok:12345")
	RootCmd.Flags().StringVar(&FlagMailType, "mail-type", "", "Notify user by mail when certain events occur, supported values: NONE, BEGIN, END, FAIL, REQUEUE, ALL, TIME_LIMIT, ARRAY_TASKS")
	RootCmd.Flags().StringVar(&FlagMailUser, "mail-user", "", "Mail address of the notification receiver")
	RootCmd.Flags().BoolVarP(&FlagHold, "hold", "H", false, "Submit the job in a held state")
	RootCmd.Flags().StringVar(&FlagWrappedScript, "wrap", "", "Wrap a command string in a sh script and submit it")
	RootCmd.Flags().StringVar(&FlagScriptDir, "script-dir", "", "Directory for the rendered batch script and job logs")
	RootCmd.Flags().StringSliceVar(&FlagPreRunCommands, "pre", nil, "Commands to run inside the job before the script body")
	RootCmd.Flags().BoolVar(&FlagDebugRun, "debug", false, "Execute the script locally instead of queueing it on Slurm")
	RootCmd.Flags().BoolVar(&FlagParsable, "parsable", false, "Output only the job id, with the cluster name appended after a semicolon if present")
	RootCmd.Flags().BoolVar(&FlagJson, "json", false, "Output the submission result in JSON")
}
