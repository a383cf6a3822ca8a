// Command coordinator runs the Coordinator Service (C3): the long-lived
// TCP process that holds the authoritative registry of available
// workers. It mirrors FBuildCoordinator/Main.cpp's shape — parse args,
// acquire a singleton lock, start serving, block until signaled — with
// exit codes matching spec.md §6 exactly.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"fbroker/internal/config"
	"fbroker/internal/consolelog"
	"fbroker/internal/coordinator"
	"fbroker/internal/registrymirror"
	"fbroker/internal/statusapi"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitBadArgs        = -1
	exitAlreadyRunning = -2
	exitListenFailed   = -3
)

func main() {
	os.Exit(run())
}

func run() int {
	flagSet := pflag.NewFlagSet("coordinator", pflag.ContinueOnError)
	dotEnvPath := flagSet.String("env-file", "", "path to a .env file to load before reading the environment")
	lockPath := flagSet.String("lock-file", defaultLockPath(), "path to the singleton lock file")
	help := flagSet.BoolP("help", "h", false, "show this help message")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}
	if *help {
		fmt.Fprintln(os.Stderr, "usage: coordinator [--env-file path] [--lock-file path]")
		flagSet.PrintDefaults()
		return exitOK
	}

	config.LoadDotEnv(*dotEnvPath)

	singleton, err := coordinator.AcquireSingleton(*lockPath)
	if err != nil {
		if errors.Is(err, coordinator.ErrAlreadyRunning) {
			consolelog.Error_("coordinator: an instance is already running (%s)", *lockPath)
			return exitAlreadyRunning
		}
		consolelog.Error_("coordinator: singleton lock: %v", err)
		return exitAlreadyRunning
	}
	defer singleton.Release()

	var opts []coordinator.Option
	var mirror *registrymirror.Mirror
	if redisCfg, enabled := config.RedisMirrorConfig(); enabled {
		mirror = registrymirror.New(redisCfg.Addr, redisCfg.Password, redisCfg.DB)
		defer mirror.Close()
		opts = append(opts, coordinator.WithEventSink(mirror))
	}

	server := coordinator.NewServer(opts...)

	bindAddr := config.CoordinatorBindAddr()
	if err := server.Start(bindAddr); err != nil {
		consolelog.Error_("coordinator: %v", err)
		return exitListenFailed
	}
	defer server.Shutdown()
	consolelog.Success_("coordinator: listening on %s", bindAddr)

	var status *statusapi.Server
	if statusAddr, enabled := config.StatusAddr(); enabled {
		status = statusapi.New(statusAddr, server)
		status.Start()
		defer status.Shutdown()
	}

	waitForSignal()
	consolelog.Info_("coordinator: shutting down")
	return exitOK
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func defaultLockPath() string {
	return filepath.Join(os.TempDir(), "fbroker-coordinator.lock")
}
