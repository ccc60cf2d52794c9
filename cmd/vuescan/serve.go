package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/vuescan"
	"github.com/praetorian-inc/vuescan/pkg/rule"
	"github.com/praetorian-inc/vuescan/pkg/serve"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveRulesPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming detection server",
	Long: `Run vuescan as a long-lived server that accepts detect requests on stdin
and writes findings to stdout using NDJSON.

The process loads rules once at startup and processes requests until
stdin closes, a "close" request arrives or SIGTERM is received. Logs go to
stderr.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Path to custom rules file or directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c, log := settings()

	budget, err := c.ToBudget()
	if err != nil {
		return err
	}

	path := serveRulesPath
	if path == "" {
		path = c.Rules.Path
	}
	rules, err := loadRules(path, rule.FilterConfig{Include: c.Rules.Include, Exclude: c.Rules.Exclude})
	if err != nil {
		return err
	}

	engine := vuescan.NewEngine(engineOptions(c, log)...)
	defer engine.Close()
	if err := engine.Initialize(rules); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(engine, budget, cmd.InOrStdin(), cmd.OutOrStdout(), log)
	srv.SetStats(func() any { return engine.Stats() })
	return srv.Run(ctx)
}
