package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mscrnt/cantiming/pkg/retention"
	"github.com/mscrnt/cantiming/pkg/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		port     int
		certFile string
		keyFile  string
		caFile   string
		logFile  string
		record   bool
		prune    string
		retain   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long: `Start the solver service. With --cert, --key and --ca the service requires
mutual TLS; without them it serves plain HTTP.

Endpoints:
  POST /solve     - Solve {"clock", "bitrate", "midpoint", "tolerance", "encoder"}
  GET  /encoders  - Register layouts
  GET  /health    - Health check

Examples:
  # Plain HTTP on the default port
  cantiming serve

  # Mutual TLS, recording every solve
  cantiming serve --cert server.crt --key server.key --ca ca.crt --record

  # Record solves and drop those older than 30 days every night
  cantiming serve --record --prune "30 3 * * *" --retain 30d

  # Using environment variables
  export CANTIMING_SERVER_PORT=2223
  export CANTIMING_SERVER_CERT=server.crt
  export CANTIMING_SERVER_KEY=server.key
  export CANTIMING_SERVER_CA=ca.crt
  cantiming serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if certFile == "" {
				certFile = env.ServerCert
			}
			if keyFile == "" {
				keyFile = env.ServerKey
			}
			if caFile == "" {
				caFile = env.ServerCA
			}
			if !cmd.Flags().Changed("port") {
				port = env.ServerPort
			}

			config := server.Config{
				Port:     port,
				CertFile: certFile,
				KeyFile:  keyFile,
				CAFile:   caFile,
				LogFile:  logFile,
			}

			if prune != "" && !record {
				return fmt.Errorf("--prune requires --record")
			}

			opts := []server.Option{server.WithLogger(logger)}
			if record {
				database, err := openDB()
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()
				opts = append(opts, server.WithStore(database))

				if prune != "" {
					maxAge, err := parseDuration(retain)
					if err != nil {
						return fmt.Errorf("invalid retention: %w", err)
					}
					pruner, err := retention.NewPruner(database, prune, maxAge, logger)
					if err != nil {
						return err
					}
					if err := pruner.Start(); err != nil {
						return err
					}
					defer pruner.Stop(30 * time.Second)
				}
			}

			srv, err := server.NewServer(config, opts...)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start()
			}()

			mode := "plain HTTP"
			if config.TLSEnabled() {
				mode = "mTLS"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Solver service started on port %d with %s\n", port, mode)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop...")

			select {
			case sig := <-sigChan:
				logger.Infof("received signal: %v", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					return fmt.Errorf("shutdown error: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Server stopped gracefully")
				return nil

			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", 2223, "Port to listen on")
	cmd.Flags().StringVar(&certFile, "cert", "", "Server certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "", "Server private key file")
	cmd.Flags().StringVar(&caFile, "ca", "", "CA certificate file for client verification")
	cmd.Flags().StringVar(&logFile, "log", "", "Log file path (optional)")
	cmd.Flags().BoolVar(&record, "record", false, "Record every solve in the history database")
	cmd.Flags().StringVar(&prune, "prune", "", "Cron schedule for pruning old history, e.g. @daily (requires --record)")
	cmd.Flags().StringVar(&retain, "retain", "30d", "How long recorded solves are kept when pruning")

	return cmd
}

func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a solver service",
	}

	cmd.AddCommand(remoteSolveCmd())
	cmd.AddCommand(remoteHealthCmd())

	return cmd
}

type remoteFlags struct {
	host     string
	port     int
	certFile string
	keyFile  string
	caFile   string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "localhost", "Service host")
	cmd.Flags().IntVar(&f.port, "port", 0, "Service port (default from CANTIMING_SERVER_PORT or 2223)")
	cmd.Flags().StringVar(&f.certFile, "cert", "", "Client certificate file (default from CANTIMING_CLIENT_CERT)")
	cmd.Flags().StringVar(&f.keyFile, "key", "", "Client private key file (default from CANTIMING_CLIENT_KEY)")
	cmd.Flags().StringVar(&f.caFile, "ca", "", "CA certificate file (default from CANTIMING_CLIENT_CA)")
}

func (f *remoteFlags) client() (*server.Client, error) {
	config := server.ClientConfig{
		Host:     f.host,
		Port:     f.port,
		CertFile: f.certFile,
		KeyFile:  f.keyFile,
		CAFile:   f.caFile,
	}
	if config.Port == 0 {
		config.Port = env.ServerPort
	}
	if config.CertFile == "" {
		config.CertFile = env.ClientCert
	}
	if config.KeyFile == "" {
		config.KeyFile = env.ClientKey
	}
	if config.CAFile == "" {
		config.CAFile = env.ClientCA
	}

	client, err := server.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func remoteSolveCmd() *cobra.Command {
	var (
		remote remoteFlags
		flags  solveFlags
		name   string
	)

	cmd := &cobra.Command{
		Use:   "solve [CLOCK BITRATE]",
		Short: "Solve on a remote service",
		Long: `Send a solve request to a running cantiming service and print the JSON reply.

Examples:
  cantiming remote solve 36MHz 500k --host bench-01
  cantiming remote solve --clock 80MHz --bitrate 1Mbps --encoder mcan \
      --host bench-01 --cert client.crt --key client.key --ca ca.crt`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := flags.values(args)
			if err != nil {
				return err
			}
			req := server.Request{
				Name:      name,
				Clock:     v.clock,
				Bitrate:   v.bitrate,
				Midpoint:  v.midpoint,
				Tolerance: v.tolerance,
				Encoder:   flags.encoder,
			}

			client, err := remote.client()
			if err != nil {
				return err
			}

			resp, err := client.Solve(cmd.Context(), req)
			if err != nil {
				return err
			}

			je := json.NewEncoder(cmd.OutOrStdout())
			je.SetIndent("", "  ")
			return je.Encode(resp)
		},
	}

	remote.register(cmd)
	flags.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name recorded by the service")

	return cmd
}

func remoteHealthCmd() *cobra.Command {
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a remote service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := remote.client()
			if err != nil {
				return err
			}
			if err := client.CheckHealth(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	remote.register(cmd)

	return cmd
}
