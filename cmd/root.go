// Package cmd provides the root command and CLI setup for flakyfence.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	"flakyfence.dev/pkg/flakyfence/internal/controller"
	"flakyfence.dev/pkg/flakyfence/internal/domain"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

var reportStore adapter.ReportStore
var ui controller.UI

// newExecutor builds the test executor from the current configuration.
// Package-level so tests can substitute a fake.
var newExecutor = defaultExecutor

// newAnalysis composes the analysis pipeline around an executor.
// Package-level so tests can substitute a fake.
var newAnalysis = defaultAnalysis

// errPollutionFound turns findings into a non-zero exit status. The
// analyze command silences cobra's error reporting before returning it,
// since the findings themselves are the message.
var errPollutionFound = errors.New("test pollution found")

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// verboseFlag lowers the log level to debug.
var verboseFlag bool

// excludePatterns is a root-level flag that filters collected tests for applicable commands.
var excludePatterns []string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY())
	reportStore = adapter.NewLocalReportStore()
}

const testIDHelp = `Tests are pytest node IDs in the order the suite ran them:
  - tests/test_user.py::test_login
  - tests/test_cart.py::TestCart::test_checkout`

const rootLongDescription = `FlakyFence localizes test pollution: when a test fails in full-suite
order but passes alone, it bisects the tests that ran before the victim
down to the minimal set of polluters that reproduce the failure.

` + testIDHelp

const analyzeLongDescription = `Analyze a suite for order-dependent failures. Without explicit test IDs
the suite is collected from the project directory first.

` + testIDHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flakyfence",
		Short: "Test pollution localizer for pytest suites",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

// newRootCmd builds a fresh root command without subcommands. Production
// uses the package-level rootCmd; tests build their own root and attach
// the command under test so each run starts from clean flag state.
func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for analysis reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "enable debug logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude tests matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func defaultExecutor() adapter.TestExecutor {
	if command := viper.GetStringSlice(executorCommandKey); len(command) > 0 {
		executor, err := adapter.NewCommandExecutor(
			command,
			viper.GetStringSlice(executorCollectKey),
			viper.GetString(executorMarkerKey),
			probeTimeout(),
		)
		cobra.CheckErr(err)

		return executor
	}

	return adapter.NewPytestExecutor(viper.GetString(pythonConfigKey), probeTimeout())
}

func defaultAnalysis(executor adapter.TestExecutor, recorder domain.TranscriptRecorder, sink domain.EventSink) domain.Analyzer {
	victims := domain.NewVictimFinder(executor, recorder, sink)

	return domain.NewAnalyzer(executor, victims, domain.NewBisector(), recorder, sink)
}

func parseTests(args []string) []m.TestID {
	tests := make([]m.TestID, 0, len(args))
	for _, arg := range args {
		tests = append(tests, m.TestID(arg))
	}

	return tests
}

// filterTests drops tests matching any of the exclude patterns.
func filterTests(tests []m.TestID, patterns []string) ([]m.TestID, error) {
	if len(patterns) == 0 {
		return tests, nil
	}

	exprs := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		expr, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile exclude pattern %q: %w", pattern, err)
		}

		exprs = append(exprs, expr)
	}

	kept := make([]m.TestID, 0, len(tests))
	for _, test := range tests {
		excluded := false
		for _, expr := range exprs {
			if expr.MatchString(string(test)) {
				excluded = true
				break
			}
		}

		if !excluded {
			kept = append(kept, test)
		}
	}

	return kept, nil
}
