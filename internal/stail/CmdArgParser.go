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

package stail

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"SlurmExec/internal/util"
)

var (
	FlagFollow         bool
	FlagFromStart      bool
	FlagConfigFilePath string

	RootCmd = &cobra.Command{
		Use:     "stail [flags] job_id",
		Short:   "Follow the log file of a Slurm job",
		Version: util.Version(),
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := TailJob(args[0]); err != nil {
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
	RootCmd.Flags().BoolVarP(&FlagFollow, "follow", "f", true,
		"Keep the log file open and stream new lines as the job writes them")
	RootCmd.Flags().BoolVar(&FlagFromStart, "from-start", false,
		"Print the log from the beginning instead of only new lines")
}
