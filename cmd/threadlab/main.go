// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/core"
	"go.threadkit.io/threads/introspect"
	"go.threadkit.io/threads/logging"
	"golang.org/x/sync/errgroup"
)

type options struct {
	LogLevel string `long:"log-level" default:"info" description:"log level"`
	Scenario string `long:"scenario" default:"all" choice:"notify" choice:"wait" choice:"interrupt" choice:"destroy" choice:"uncaught" choice:"all" description:"scenario to run"`
	Threads  int    `long:"threads" default:"20" description:"number of waiting threads in the notify scenario"`
	Seed     int64  `long:"seed" description:"seed of the random group tree, current time when unset"`
	Listen   string `long:"listen" description:"serve the introspection API on host:port while scenarios run"`
	Linger   bool   `long:"linger" description:"keep serving the introspection API after scenarios complete, until SIGINT or SIGTERM"`
}

func main() {
	opts := getCLIArgs()
	setLogLevel(opts.LogLevel)

	if opts.Threads < 1 {
		log.Fatalf("--threads must be positive, got %d", opts.Threads)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	rt := core.NewRuntime()
	log.WithFields(log.Fields{"runtime": rt.ID(), "seed": opts.Seed}).Info("Thread lab starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	eg, egCtx := errgroup.WithContext(serveCtx)
	if opts.Listen != "" {
		server, err := newIntrospectionServer(opts.Listen, rt)
		if err != nil {
			log.WithError(err).Fatal("Failed to start introspection server")
		}
		log.WithFields(log.Fields{"host": server.Host(), "port": server.Port()}).
			Infof("Introspection API available at %s", server.URL("/threads"))
		eg.Go(func() error { return server.Serve(egCtx) })
	}

	eg.Go(func() error {
		main, err := rt.Attach("main")
		if err != nil {
			return err
		}
		defer rt.Detach(main)

		l := &lab{rt: rt, main: main, threads: opts.Threads, rng: rand.New(rand.NewSource(opts.Seed))}
		err = l.runAll(selectScenarios(opts.Scenario))
		if err != nil || !opts.Linger || opts.Listen == "" {
			cancelServe()
		}
		return err
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("Thread lab failed")
	}
	log.Info("Thread lab done")
}

func getCLIArgs() options {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown|flags.HelpFlag)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}
	return opts
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Fatal("Failed to set log level. Valid log levels are:", log.AllLevels)
	}

	log.SetLevel(level)
	log.SetFormatter(&logging.InternalFormatter{})
	logging.SetOutput(os.Stderr)
}

func newIntrospectionServer(addr string, rt *core.Runtime) (*introspect.Server, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	server := introspect.NewServer(host, port, rt)
	if err := server.Listen(); err != nil {
		return nil, err
	}
	return server, nil
}
