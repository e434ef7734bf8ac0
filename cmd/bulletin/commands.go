package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eringen/bulletin"
	"github.com/eringen/bulletin/datasrv"
)

var (
	configPath string
	verbose    bool

	dataAddr      string
	dataFile      string
	dataStaticDir string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")

	dataserverCmd.Flags().StringVar(&dataAddr, "addr", ":3000", "address to listen on")
	dataserverCmd.Flags().StringVar(&dataFile, "file", "data/data.json", "JSON document to serve")
	dataserverCmd.Flags().StringVar(&dataStaticDir, "static", "", "directory of static files to serve alongside the API")

	rootCmd.AddCommand(serveCmd, dataserverCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "bulletin",
	Short:         "Community site with live-updating news, gallery and video",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site, admin dashboard and live updates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bulletin.LoadConfig(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := bulletin.New(cfg, bulletin.WithLogger(logrus.StandardLogger()))
		defer app.Close()
		return app.Start(ctx)
	},
}

var dataserverCmd = &cobra.Command{
	Use:   "dataserver",
	Short: "Serve only the REST data API (GET/POST /api/data)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDataServer(ctx, logrus.StandardLogger())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bulletin version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bulletin %s\n", version)
	},
}

func newDataServer(log *logrus.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	datasrv.NewHandler(datasrv.NewFileStore(dataFile), log).RegisterRoutes(e.Group("/api"))
	if dataStaticDir != "" {
		e.Static("/", dataStaticDir)
	}
	return e
}

func runDataServer(ctx context.Context, log *logrus.Logger) error {
	e := newDataServer(log)
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": dataAddr, "file": dataFile}).Info("data server listening")
		errCh <- e.Start(dataAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
