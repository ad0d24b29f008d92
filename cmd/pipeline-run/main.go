// Command pipeline-run is the CLI front end for the Pipeline Core (§6): it
// loads a pipeline description, binds external inputs, plans and executes a
// goal, binds outputs, and optionally persists the result — mirroring the
// teacher's demo/cmd/main.go layout of one cobra root command doing the
// work directly rather than dispatching to subcommands, since pipeline-run
// has exactly one job.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/oxhq/pipecore/internal/cliapp"
)

func main() {
	var (
		inputs       []string
		outputs      []string
		goalStep     string
		libraries    []string
		flags        []string
		workDir      string
		verbose      bool
		release      bool
		pipelineFile string
	)

	root := &cobra.Command{
		Use:   "pipeline-run [-P pipeline.yaml | pipeline.yaml] [step:container:path:Kind ...]",
		Short: "Plan and execute a Pipeline Core pipeline description",
		Long:  "Loads a pipeline description, binds inputs, plans and executes a goal, binds outputs, and optionally persists the result to a working directory.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			goalTargets := args
			if pipelineFile == "" {
				if len(args) == 0 {
					return fmt.Errorf("a pipeline description is required: pass -P <file> or name it as the first argument")
				}
				pipelineFile = args[0]
				goalTargets = args[1:]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			app := &cliapp.App{
				Config: cliapp.Config{
					PipelineFile: pipelineFile,
					Inputs:       inputs,
					Outputs:      outputs,
					GoalStep:     goalStep,
					GoalTargets:  goalTargets,
					Libraries:    libraries,
					Flags:        flags,
					WorkDir:      workDir,
					Verbose:      verbose,
					Release:      release,
				},
				Stderr: os.Stderr,
			}

			code := app.Run(ctx)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	root.Flags().StringVarP(&pipelineFile, "pipeline", "P", "", "the pipeline description file; when absent, the first positional argument names it")
	root.Flags().StringSliceVarP(&inputs, "input", "i", nil, "bind an external file as input: step:container:ospath")
	root.Flags().StringSliceVarP(&outputs, "output", "o", nil, "bind a result container to an external file: step:container:ospath")
	root.Flags().StringVar(&goalStep, "step", "", "the goal step, cross-checked against each positional goal target's step")
	root.Flags().StringSliceVarP(&libraries, "library", "l", nil, "load a named library's Ranks, Kinds, Containers and Pipes before resolving the pipeline")
	root.Flags().StringSliceVarP(&flags, "flag", "f", nil, "activate a named flag, enabling EnabledWhen-gated Pipes that require it")
	root.Flags().StringVarP(&workDir, "persist", "p", "", "persist the goal result into this working directory's SQLite index")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose gorm logging against the persistence store")
	root.Flags().BoolVar(&release, "release", false, "downgrade PipeContractViolation from fatal to a logged warning")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
