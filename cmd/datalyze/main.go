// Command datalyze answers natural language questions about tabular datasets
// using a supervisor-orchestrated team of analysis agents.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datalyze-ai/datalyze"
	"github.com/datalyze-ai/datalyze/config"
	"github.com/datalyze-ai/datalyze/supervisor"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	dataPath  string
	query     string
	dataDir   string
	outputDir string
	sessionDB string
	quiet     bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:     "datalyze",
		Short:   "Ask questions about tabular datasets in natural language",
		Version: version,
		Long: `datalyze loads a dataset (CSV, Excel, JSON or Parquet) and answers
questions about it: a code generation agent inspects the data and writes
analysis code, a code execution agent runs it, and a supervisor routes the
conversation until an answer is ready.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.dataPath, "data", "d", "", "path to the dataset to load")
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "single question to answer (omit for interactive mode)")
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "directory for the dataset working copy")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "directory for generated analysis code")
	cmd.Flags().StringVar(&flags.sessionDB, "session-db", "", "SQLite file for durable conversation history")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "only print final answers")

	return cmd
}

func run(ctx context.Context, flags *cliFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.outputDir != "" {
		cfg.OutputDir = flags.outputDir
	}
	if flags.sessionDB != "" {
		cfg.SessionDB = flags.sessionDB
	}

	m, err := datalyze.New(func(o *datalyze.Options) {
		o.Config = cfg
	})
	if err != nil {
		return err
	}

	if !flags.quiet {
		color.Cyan("datalyze %s (%s / %s)", version, cfg.Provider, cfg.Model)
	}

	if flags.dataPath != "" {
		if err := loadData(m, flags.dataPath, flags.quiet); err != nil {
			return err
		}
	}

	if flags.query != "" {
		return askOnce(ctx, m, flags.query, flags.quiet)
	}
	return interactive(ctx, m, flags.quiet)
}

func loadData(m *datalyze.Manager, path string, quiet bool) error {
	dest, err := m.LoadData(path)
	if err != nil {
		return err
	}
	if quiet {
		return nil
	}
	color.Green("loaded %s -> %s", path, dest)
	if info, err := m.DataInfo(); err == nil {
		fmt.Printf("%d rows, %d columns\n", info.Rows, len(info.Columns))
	}
	return nil
}

func askOnce(ctx context.Context, m *datalyze.Manager, question string, quiet bool) error {
	if quiet {
		answer, err := m.Ask(ctx, question)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	snapCh, errCh := m.AskStream(ctx, question)
	var snapshots []supervisor.Snapshot
	for snap := range snapCh {
		printSnapshot(snap)
		snapshots = append(snapshots, snap)
	}
	if err := <-errCh; err != nil {
		return err
	}

	color.Green("\n%s", supervisor.ExtractAnswer(snapshots))
	return nil
}

func printSnapshot(snap supervisor.Snapshot) {
	node := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	for _, update := range snap.Updates {
		for _, ev := range update.Events {
			if ev.IsHandoff() {
				continue
			}
			for _, call := range ev.GetFunctionCalls() {
				node.Printf("[%s] ", update.Node)
				dim.Printf("-> %s\n", call.Name)
			}
			if len(ev.GetFunctionCalls()) > 0 || len(ev.GetFunctionResponses()) > 0 {
				continue
			}
			if text := strings.TrimSpace(ev.Text()); text != "" {
				node.Printf("[%s] ", update.Node)
				fmt.Println(text)
			}
		}
	}
}

func interactive(ctx context.Context, m *datalyze.Manager, quiet bool) error {
	if !quiet {
		fmt.Println(`Type a question, or:
  data <path>   load another dataset
  info          show the current dataset profile
  quit          exit`)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == "info":
			info, err := m.DataInfo()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			fmt.Print(info.Describe())
		case strings.HasPrefix(line, "data "):
			if err := loadData(m, strings.TrimSpace(strings.TrimPrefix(line, "data ")), quiet); err != nil {
				color.Red("%v", err)
			}
		default:
			if err := askOnce(ctx, m, line, quiet); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				color.Red("%v", err)
			}
		}
	}
}
