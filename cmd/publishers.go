package cmd

import (
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/shelfstar/shelfstar/usecase/publishers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// PublishersMain is wrapped by NewPublishersCommand and only exported for
// testing purposes.
var PublishersMain *publishers.Main

// NewPublishersCommand returns a new cobra command wrapping PublishersMain.
func NewPublishersCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	PublishersMain = publishers.NewMain()
	publishersCommand := &cobra.Command{
		Use:   "publishers",
		Short: "Resolve inventory publishers against the gazetteer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint: errcheck
			PublishersMain.Logger = logger

			start := time.Now()
			if _, err = PublishersMain.Run(cmd.Context()); err != nil {
				logger.Error("resolving publishers", zap.Error(err))
				return err
			}
			logger.Info("done", zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
	flags := publishersCommand.Flags()
	err = commandeer.Flags(flags, PublishersMain)
	if err != nil {
		panic(err)
	}
	return publishersCommand
}

func init() {
	subcommandFns["publishers"] = NewPublishersCommand
}
