package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flakyfence.dev/pkg/flakyfence/internal/domain"
	"flakyfence.dev/pkg/flakyfence/internal/server"
)

var serveAddrFlag string

// serveCmd represents the serve command.
var serveCmd = newServeCmd()

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pollution analysis over HTTP",
		Long: `Expose the analysis as a small HTTP API: POST /analyze runs one
analysis per request, GET /healthz reports liveness. Transcripts are not
recorded for served analyses.`,
		Args: cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			executor := newExecutor()
			analyzer := newAnalysis(executor, domain.NopRecorder(), nil)

			addr := viper.GetString(serveAddrConfigKey)
			slog.Info("Serving analysis API", "addr", addr)

			if err := server.New(analyzer, executor).Run(addr); err != nil {
				return fmt.Errorf("failed to serve analysis API: %w", err)
			}

			return nil
		},
	}

	configureServeFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func configureServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveAddrFlag, serveAddrFlagName, viper.GetString(serveAddrConfigKey), "listen address for the analysis API")
	bindFlagToConfig(cmd.Flags().Lookup(serveAddrFlagName), serveAddrConfigKey)
}
