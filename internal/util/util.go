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
	"os"
	"path/filepath"
	"strings"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type SubmitLogConfig struct {
	Path       string `yaml:"Path"`
	MaxSizeMb  int    `yaml:"MaxSizeMb"`
	MaxBackups int    `yaml:"MaxBackups"`
	MaxAgeDays int    `yaml:"MaxAgeDays"`
}

type Config struct {
	SbatchPath   string `yaml:"SbatchPath"`
	SqueuePath   string `yaml:"SqueuePath"`
	ScontrolPath string `yaml:"ScontrolPath"`

	ScriptDir        string `yaml:"ScriptDir"`
	DefaultPartition string `yaml:"DefaultPartition"`
	DefaultAccount   string `yaml:"DefaultAccount"`
	DefaultTimeLimit string `yaml:"DefaultTimeLimit"`

	DefaultSbatchArgs map[string]string `yaml:"DefaultSbatchArgs"`

	SubmitLog SubmitLogConfig `yaml:"SubmitLog"`
}

var (
	DefaultConfigPath    string
	DefaultScriptDirName string
	DefaultSubmitLogPath string
)

func init() {
	DefaultConfigPath = "/etc/slurmexec/config.yaml"
	DefaultScriptDirName = "slurm"
	DefaultSubmitLogPath = filepath.Join(os.TempDir(), "slurmexec", "submit.log")
}

func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		SbatchPath:   "sbatch",
		SqueuePath:   "squeue",
		ScontrolPath: "scontrol",
		ScriptDir:    filepath.Join(home, DefaultScriptDirName),
		SubmitLog: SubmitLogConfig{
			Path:       DefaultSubmitLogPath,
			MaxSizeMb:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// ParseConfig reads the configuration file. A missing file is not an error:
// the tools must work on a login node with no config deployed.
func ParseConfig(configFilePath string) *Config {
	config := DefaultConfig()

	confFile, err := os.ReadFile(configFilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("Failed to read config file %s: %v", configFilePath, err)
		}
		return config
	}
	if err = yaml.Unmarshal(confFile, config); err != nil {
		log.Errorf("Failed to parse config file %s: %v", configFilePath, err)
		return DefaultConfig()
	}

	if config.ScriptDir != "" {
		config.ScriptDir = ExpandHomeDir(config.ScriptDir)
	}
	config.SubmitLog.Path = ExpandHomeDir(config.SubmitLog.Path)
	return config
}

func InitLogger() {
	log.SetLevel(log.InfoLevel)
	if env := os.Getenv("SLURMEXEC_LOG_LEVEL"); env != "" {
		if level, err := CheckLogLevel(env); err == nil {
			log.SetLevel(level)
		}
	}
	log.SetFormatter(&nested.Formatter{
		HideKeys: true,
		NoColors: !term.IsTerminal(int(os.Stderr.Fd())),
	})
}

func CheckLogLevel(level string) (log.Level, error) {
	return log.ParseLevel(strings.ToLower(level))
}

func ExpandHomeDir(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
