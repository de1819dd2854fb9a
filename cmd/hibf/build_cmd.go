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
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seqbin/hibf/build"
	"github.com/seqbin/hibf/layoutreader"
)

var (
	buildK       int
	buildHashes  int
	buildFPR     float64
	buildVerbose bool
)

var buildCmd = &cobra.Command{
	Use:   "build <layout-file>",
	Short: "Build the interleaved Bloom filters described by a layout file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.IntVar(&buildK, "k", 19, "k-mer length")
	f.IntVar(&buildHashes, "hash-functions", 2, "number of IBF hash functions")
	f.Float64Var(&buildFPR, "false-positive-rate", 0.05, "target per-bin false positive rate")
	f.BoolVar(&buildVerbose, "verbose-sizing", false, "log per-node IBF sizing decisions")

	viper.BindPFlag("build.k", f.Lookup("k"))
	viper.BindPFlag("build.hash_functions", f.Lookup("hash-functions"))
	viper.BindPFlag("build.false_positive_rate", f.Lookup("false-positive-rate"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	text, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "reading layout file %s", args[0])
	}

	tree, err := layoutreader.Parse(string(text))
	if err != nil {
		return errors.Wrap(err, "parsing layout")
	}

	builder, err := build.New(tree, build.Config{
		K:                 viper.GetInt("build.k"),
		NumHashFunctions:  viper.GetInt("build.hash_functions"),
		FalsePositiveRate: viper.GetFloat64("build.false_positive_rate"),
		Verbose:           buildVerbose,
		Logger:            log,
	})
	if err != nil {
		return err
	}

	result, err := builder.Build()
	if err != nil {
		return errors.Wrap(err, "building IBFs")
	}

	log.Infof("built %s interleaved Bloom filters", humanize.Comma(int64(len(result.IBFs))))
	return nil
}
