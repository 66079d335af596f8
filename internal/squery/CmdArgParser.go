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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"SlurmExec/internal/util"
)

var (
	FlagSelf             bool
	FlagFilterJobIDs     string
	FlagFilterStates     string
	FlagFilterNames      string
	FlagFilterPartitions string
	FlagFilter           string
	FlagTree             bool
	FlagNoHeader         bool
	FlagJson             bool
	FlagConfigFilePath   string

	RootCmd = &cobra.Command{
		Use:     "squery [flags]",
		Short:   "Show jobs in the Slurm queue",
		Version: util.Version(),
		Args:    cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			if err := Query(); err != nil {
				log.Error(err)
				os.Exit(util.ExitCode(err))
			}
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
	RootCmd.Flags().BoolVar(&FlagSelf, "self", false, "Show only jobs submitted by the current user")
	RootCmd.Flags().StringVarP(&FlagFilterJobIDs, "jobs", "j", "",
		"Specify job ids to view, separated by commas")
	RootCmd.Flags().StringVarP(&FlagFilterStates, "states", "t", "",
		"Specify job states to view, separated by commas")
	RootCmd.Flags().StringVarP(&FlagFilterNames, "names", "n", "",
		"Specify job names to view, separated by commas")
	RootCmd.Flags().StringVarP(&FlagFilterPartitions, "partitions", "p", "",
		"Specify partitions to view, separated by commas")
	RootCmd.Flags().StringVar(&FlagFilter, "filter", "",
		"Filter expression of key=value conditions, e.g. 'state=RUNNING partition=gpu'")
	RootCmd.Flags().BoolVar(&FlagTree, "tree", false,
		"Group array tasks under their parent job")
	RootCmd.Flags().BoolVar(&FlagNoHeader, "noheader", false,
		"Do not print the table header")
	RootCmd.Flags().BoolVar(&FlagJson, "json", false,
		"Print the raw squeue JSON output")
}
