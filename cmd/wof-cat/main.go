/*
   Copyright The Soci Snapshotter Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/awslabs/syscompress/config"
	commonmetrics "github.com/awslabs/syscompress/metrics/common"
	"github.com/awslabs/syscompress/tracing"
	"github.com/containerd/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
)

const (
	configFlag         = "config"
	logLevelFlag       = "log-level"
	metricsAddressFlag = "metrics-address"

	metadataConfig  = "config"
	metadataContext = "context"
	metadataCleanup = "cleanup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	if err := newApp(ctx, os.Stdout).Run(os.Args); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "wof-cat: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

func newApp(ctx context.Context, stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "wof-cat"
	app.Usage = "read files stored with Windows system compression (WOF)"
	app.Writer = stdout
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  configFlag,
			Usage: "path to the configuration file",
			Value: config.DefaultConfigPath,
		},
		cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "set the logging level [trace, debug, info, warn, error, fatal, panic]; overrides log_level in the config file",
		},
		cli.StringFlag{
			Name:  metricsAddressFlag,
			Usage: "serve prometheus metrics on this address; overrides metrics_address in the config file",
		},
	}
	app.Commands = []cli.Command{
		catCommand,
		infoCommand,
		verifyCommand,
		benchCommand,
	}
	app.Metadata = map[string]interface{}{metadataContext: ctx}
	app.Before = before
	app.After = after
	return app
}

func before(c *cli.Context) error {
	cfg, err := config.NewConfigFromToml(c.GlobalString(configFlag))
	if err != nil {
		return err
	}
	if v := c.GlobalString(logLevelFlag); v != "" {
		cfg.LogLevel = v
	}
	if v := c.GlobalString(metricsAddressFlag); v != "" {
		cfg.MetricsAddress = v
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	c.App.Metadata[metadataConfig] = cfg

	ctx := appContext(c)
	var cleanups []func(context.Context) error

	disabled, err := tracing.IsDisabled()
	if err != nil {
		return err
	}
	if !disabled {
		shutdown, err := tracing.Init(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		cleanups = append(cleanups, shutdown)
		c.App.Metadata[metadataCleanup] = cleanups
	}

	if cfg.MetricsAddress != "" && !cfg.NoPrometheus {
		stop, err := serveMetrics(ctx, cfg.MetricsNetwork, cfg.MetricsAddress)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stop)
		c.App.Metadata[metadataCleanup] = cleanups
	}
	return nil
}

func after(c *cli.Context) error {
	cleanups, _ := c.App.Metadata[metadataCleanup].([]func(context.Context) error)
	var errs []error
	for _, f := range cleanups {
		errs = append(errs, f(appContext(c)))
	}
	return errors.Join(errs...)
}

func serveMetrics(ctx context.Context, network, address string) (func(context.Context) error, error) {
	commonmetrics.Register()
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %q for metrics: %w", network, address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.G(ctx).WithError(err).Error("metrics server stopped")
		}
	}()
	log.G(ctx).WithField("address", l.Addr().String()).Info("serving metrics")
	return srv.Shutdown, nil
}

func appContext(c *cli.Context) context.Context {
	if ctx, ok := c.App.Metadata[metadataContext].(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metadataConfig].(*config.Config); ok {
		return cfg
	}
	return config.NewConfig()
}
