/*
 * Copyright 2026 The HIBF Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.StandardLogger()

var (
	flagVerbose bool
	flagDebug   bool
	flagJSON    bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:           "hibf",
	Short:         "Build a Hierarchical Interleaved Bloom Filter over collections of sequence files",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
		switch {
		case flagDebug:
			log.SetLevel(logrus.DebugLevel)
		case flagVerbose:
			log.SetLevel(logrus.InfoLevel)
		default:
			log.SetLevel(logrus.WarnLevel)
		}
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "emit structured JSON logs")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a hibf config file (default: ./hibf.yaml)")

	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(buildCmd)
}

// initConfig wires viper the way vconvert's initConfig does: an explicit
// --config path takes precedence, otherwise look for hibf.yaml in the
// current directory; a missing file is not an error, it just means every
// setting falls back to its flag default.
func initConfig() error {
	if flagConfig != "" {
		viper.SetConfigFile(flagConfig)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("hibf")
	}
	viper.SetEnvPrefix("HIBF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		log.Debug("no hibf config file found, using flag defaults")
	} else {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
	return nil
}
