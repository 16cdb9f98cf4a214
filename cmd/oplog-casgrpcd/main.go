// Command oplog-casgrpcd serves a CAS backend over gRPC so that entry
// blocks can be shared between processes and hosts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"google.golang.org/grpc"

	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casconfig"
	"xdao.co/oplog/storage/casregistry"
	"xdao.co/oplog/storage/grpccas"

	_ "xdao.co/oplog/storage/ipfs"
	_ "xdao.co/oplog/storage/localfs"
	_ "xdao.co/oplog/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// config holds daemon settings. Environment variables set the defaults
// and flags override them.
type config struct {
	Listen    string `env:"OPLOG_CASGRPCD_LISTEN" envDefault:"127.0.0.1:7777"`
	Backend   string `env:"OPLOG_CASGRPCD_BACKEND" envDefault:"localfs"`
	CASConfig string `env:"OPLOG_CASGRPCD_CAS_CONFIG"`
	Prefer    string `env:"OPLOG_CASGRPCD_PREFER"`
	LogLevel  string `env:"OPLOG_CASGRPCD_LOG_LEVEL" envDefault:"info"`
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(errOut, "parse env: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("oplog-casgrpcd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", cfg.Listen, "listen address")
	backend := fs.String("backend", cfg.Backend, "CAS backend name")
	casConfig := fs.String("cas-config", cfg.CASConfig, "JSON or YAML CAS config file (overrides --backend)")
	prefer := fs.String("prefer", cfg.Prefer, "Backend from --cas-config to write to first")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(errOut, "invalid --log-level: %v\n", err)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cas, closeFn, err := openCAS(*casConfig, *backend, *prefer)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen failed", "address", *listen, "error", err)
		return 1
	}

	if err := serve(ctx, lis, cas, logger); err != nil {
		logger.Error("serve failed", "error", err)
		return 1
	}
	return 0
}

func openCAS(configPath, backend, prefer string) (storage.CAS, func() error, error) {
	if configPath != "" {
		cfg, err := casconfig.LoadFile(configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open(casregistry.UsageDaemon, prefer)
	}
	return casregistry.Open(backend, casregistry.UsageDaemon)
}

// serve runs the CAS service on lis until ctx is done, then drains
// in-flight RPCs.
func serve(ctx context.Context, lis net.Listener, cas storage.CAS, logger *slog.Logger) error {
	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas, Logger: logger})

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("listening", "address", lis.Addr().String(), "service", grpccas.ServiceName)
	err := s.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		err = nil
	}
	if ctx.Err() != nil {
		<-done
	}
	return err
}
