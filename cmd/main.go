package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/config"
	"github.com/usagestats/usagestats/dashboard"
	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/loader"
	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/metrics"
	"github.com/usagestats/usagestats/metricsprocessor"
	"github.com/usagestats/usagestats/report"
	"github.com/usagestats/usagestats/server"
	"github.com/usagestats/usagestats/util"
	"github.com/usagestats/usagestats/vmhandler"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := createRootCommand()
	checkError("Command execution failed", rootCmd.Execute())
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "usagestats",
		Short:         "Usage statistics generator and dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(
		createServeCommand(),
		createRenderCommand(),
		createGenerateCommand(),
		createStarsCommand(),
		createActivityCommand(),
	)
	return rootCmd
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg *config.Config
	zap *zap.Logger
	log logger.Logger
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	zl := logger.New(level, cfg.Logging.Format)
	return &app{cfg: cfg, zap: zl, log: logger.NewZapAdapter(zl)}, nil
}

func (a *app) close() {
	_ = a.zap.Sync()
}

// chartRequests builds the dashboard charts, compiling scripted transforms on a VM pool.
func (a *app) chartRequests() ([]charts.Request, error) {
	pool, err := vmhandler.NewVMPool(a.cfg.Scripting.PoolSize, a.log.WithFields(map[string]interface{}{"component": "scripting"}))
	if err != nil {
		return nil, fmt.Errorf("error initializing VM pool: %w", err)
	}
	reqs, err := charts.FromConfig(a.cfg.Charts, pool.CompileTransform)
	if err != nil {
		return nil, fmt.Errorf("error building charts: %w", err)
	}
	return reqs, nil
}

func (a *app) newLoader(metricsChannel chan<- metrics.Metrics) (*loader.Loader, error) {
	client := httpclient.New(config.GetDuration(a.cfg.Loader.Timeout), a.cfg.Loader.UserAgent, metricsChannel).
		WithLogger(a.log.WithFields(map[string]interface{}{"component": "httpclient"}))
	return loader.New(client, a.log, metricsChannel)
}

func createServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and result files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			reqs, err := a.chartRequests()
			if err != nil {
				return err
			}
			l, err := a.newLoader(nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.cfg.Server, a.cfg.Results.Dir, a.cfg.App.Name, l, reqs, a.log)
			return srv.Run(ctx)
		},
	}
}

func createRenderCommand() *cobra.Command {
	var baseURL, out string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Load every chart from a running server and write the dashboard page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if baseURL == "" {
				baseURL = a.cfg.Server.BaseURL
			}
			if baseURL == "" {
				return fmt.Errorf("--base-url or server.base_url is required")
			}
			return renderDashboard(cmd.Context(), a, baseURL, out, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "origin serving /results (default: server.base_url)")
	cmd.Flags().StringVar(&out, "out", "", "write the page to this file instead of stdout")
	return cmd
}

func renderDashboard(ctx context.Context, a *app, baseURL, out string, reportOut io.Writer) error {
	util.DisplayLogo(reportOut)

	reqs, err := a.chartRequests()
	if err != nil {
		return err
	}

	metricsChannel := make(chan metrics.Metrics, len(reqs)*2)
	processor := metricsprocessor.New()
	var metricsWaitGroup sync.WaitGroup
	metricsWaitGroup.Add(1)
	go processor.GatherMetrics(metricsChannel, &metricsWaitGroup)

	l, err := a.newLoader(metricsChannel)
	if err != nil {
		close(metricsChannel)
		metricsWaitGroup.Wait()
		return err
	}
	results := l.Load(ctx, baseURL, reqs)

	close(metricsChannel)
	metricsWaitGroup.Wait()

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := dashboard.Render(w, a.cfg.App.Name, results); err != nil {
		return err
	}

	report.GenerateReport(reportOut, processor.Snapshot())
	return nil
}

func checkError(message string, err error) {
	if err != nil {
		log.Fatalf("%s: %v", message, err)
	}
}
