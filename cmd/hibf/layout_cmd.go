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
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seqbin/hibf/layout"
)

var (
	layoutBins   int
	layoutAlpha  float64
	layoutFPR    float64
	layoutHashes int
	layoutK      int
	layoutOut    string
)

var layoutCmd = &cobra.Command{
	Use:   "layout <manifest>",
	Short: "Compute a hierarchical binning layout from a user-bin manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	f := layoutCmd.Flags()
	f.IntVar(&layoutBins, "bins", 64, "number of root technical bins")
	f.Float64Var(&layoutAlpha, "alpha", 1.2, "merged-bin cost penalty")
	f.Float64Var(&layoutFPR, "false-positive-rate", 0.05, "target per-bin false positive rate")
	f.IntVar(&layoutHashes, "hash-functions", 2, "number of IBF hash functions")
	f.IntVar(&layoutK, "k", 19, "k-mer length")
	f.StringVarP(&layoutOut, "output", "o", "", "write the layout to this path instead of stdout")

	viper.BindPFlag("layout.bins", f.Lookup("bins"))
	viper.BindPFlag("layout.alpha", f.Lookup("alpha"))
	viper.BindPFlag("layout.false_positive_rate", f.Lookup("false-positive-rate"))
}

// runLayout reads a TSV manifest (filenames ';'-joined TAB kmer_count,
// one user bin per line) and writes the resulting layout text.
func runLayout(cmd *cobra.Command, args []string) error {
	bins, err := readManifest(args[0])
	if err != nil {
		return err
	}

	cfg := layout.PackConfig{
		Bins:              viper.GetInt("layout.bins"),
		Alpha:             viper.GetFloat64("layout.alpha"),
		FalsePositiveRate: viper.GetFloat64("layout.false_positive_rate"),
		NumHashFunctions:  layoutHashes,
		K:                 layoutK,
		SortBins:          true,
	}

	log.WithField("user_bins", len(bins)).Info("running hierarchical binning")

	result, err := layout.Run(bins, cfg)
	if err != nil {
		return errors.Wrap(err, "hierarchical binning")
	}

	if layoutOut == "" {
		_, err = cmd.OutOrStdout().Write([]byte(result.Text))
		return err
	}
	return os.WriteFile(layoutOut, []byte(result.Text), 0o644)
}

func readManifest(path string) ([]layout.UserBin, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening manifest %s", path)
	}
	defer f.Close()

	var bins []layout.UserBin
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, errors.Errorf("manifest line %q: expected 2 tab-separated fields", line)
		}
		count, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "manifest line %q: bad kmer count", line)
		}
		bins = append(bins, layout.UserBin{
			Filenames: strings.Split(fields[0], ";"),
			KmerCount: count,
		})
	}
	return bins, scanner.Err()
}
