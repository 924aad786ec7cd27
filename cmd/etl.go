// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/shelfstar/shelfstar/usecase/etl"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ETLMain is wrapped by NewETLCommand. It is exported for testing purposes.
var ETLMain *etl.Main

// NewETLCommand wraps etl.Main with cobra.Command for use from a CLI.
func NewETLCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ETLMain = etl.NewMain()
	etlCommand := &cobra.Command{
		Use:   "etl",
		Short: "build the checkout star schema",
		Long: `Loads every source, builds the subject, author, publisher, book and
checkout time dimensions and the checkout fact table, and commits them
as Parquet files under --output together with a _manifest.json.
Nothing is written unless the whole run succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint: errcheck
			ETLMain.Logger = logger

			start := time.Now()
			manifest, err := ETLMain.Run(cmd.Context())
			if err != nil {
				logger.Error("run failed", zap.Error(err))
				return err
			}
			for _, t := range manifest.Tables {
				fmt.Fprintf(stdout, "%s\t%d\t%s\n", t.Name, t.Rows, t.Path)
			}
			logger.Info("done", zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
	flags := etlCommand.Flags()
	flags.StringVarP(&ETLMain.DictionaryPath, "dictionary", "d", ETLMain.DictionaryPath, "Item type code dictionary (path, http(s) or s3 URL).")
	flags.StringVarP(&ETLMain.InventoryPath, "inventory", "i", ETLMain.InventoryPath, "Library inventory.")
	flags.StringVarP(&ETLMain.CheckoutsPath, "checkouts", "k", ETLMain.CheckoutsPath, "Checkout records.")
	flags.StringVarP(&ETLMain.CatalogPath, "catalog", "b", ETLMain.CatalogPath, "External book catalog.")
	flags.StringVarP(&ETLMain.WeatherPath, "weather", "w", ETLMain.WeatherPath, "Daily temperatures.")
	flags.StringVarP(&ETLMain.PublishersPath, "publishers", "p", ETLMain.PublishersPath, "Publisher map written by the publishers command.")
	flags.StringVarP(&ETLMain.Output, "output", "o", ETLMain.Output, "Output directory or s3://bucket/prefix.")
	flags.StringVar(&ETLMain.AWSRegion, "aws-region", ETLMain.AWSRegion, "AWS region for s3 inputs and output.")
	flags.StringVar(&ETLMain.IDStore, "id-store", ETLMain.IDStore, "Persist surrogate ids in bolt:<file> or leveldb:<dir>. Empty keeps them in memory.")
	flags.IntVarP(&ETLMain.LimitRecords, "limit-records", "n", ETLMain.LimitRecords, "Only read this many inventory and checkout rows. 0 means all.")
	flags.IntVar(&ETLMain.Retries, "retries", ETLMain.Retries, "Attempts per source before giving up.")
	flags.BoolVar(&ETLMain.CollapseFacts, "collapse-facts", ETLMain.CollapseFacts, "Keep only the first checkout for each fact id.")

	return etlCommand
}

func init() {
	subcommandFns["etl"] = NewETLCommand
}
