package cmd

import (
	"fmt"
	"io"

	"github.com/shelfstar/shelfstar/usecase/gazetteer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// GazetteerMain is wrapped by NewGazetteerCommand. It is exported for testing
// purposes.
var GazetteerMain *gazetteer.Main

// NewGazetteerCommand returns the "gazetteer" command and its "seed"
// subcommand.
func NewGazetteerCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	GazetteerMain = gazetteer.NewMain()
	gazetteerCommand := &cobra.Command{
		Use:   "gazetteer",
		Short: "Manage the publisher gazetteer search index.",
	}
	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "(Re)create the gazetteer index from a one column CSV.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint: errcheck
			GazetteerMain.Logger = logger

			n, err := GazetteerMain.Run(cmd.Context())
			if err != nil {
				logger.Error("seeding gazetteer", zap.Error(err))
				return err
			}
			fmt.Fprintf(stdout, "indexed %d publishers into %s\n", n, GazetteerMain.Index)
			return nil
		},
	}
	flags := seedCommand.Flags()
	flags.StringVarP(&GazetteerMain.Source, "source", "s", GazetteerMain.Source, "CSV of official publisher names with a 'publisher' header (path, http(s) or s3 URL).")
	flags.StringSliceVar(&GazetteerMain.Hosts, "hosts", GazetteerMain.Hosts, "Comma separated list of Elasticsearch addresses.")
	flags.StringVar(&GazetteerMain.Index, "index", GazetteerMain.Index, "Gazetteer index name.")
	flags.StringVar(&GazetteerMain.AWSRegion, "aws-region", GazetteerMain.AWSRegion, "AWS region for an s3 source.")
	gazetteerCommand.AddCommand(seedCommand)
	return gazetteerCommand
}

func init() {
	subcommandFns["gazetteer"] = NewGazetteerCommand
}
