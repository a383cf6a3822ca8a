// Command worker is an example build-worker daemon: it advertises this
// host's availability through internal/brokerage on a ticker and
// withdraws cleanly on shutdown. The actual decision of when this host
// is idle enough to accept jobs belongs to the worker's local policy,
// which spec.md §1 places out of scope — this binary stands in for that
// policy with a fixed "always dedicated" descriptor.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"fbroker/internal/brokerage"
	"fbroker/internal/config"
	"fbroker/internal/consolelog"
	"fbroker/internal/descriptor"
)

// publishTick is how often the main loop calls SetAvailability(true);
// the brokerage client itself throttles the resulting I/O to spec.md
// §4.4's ~10s window.
const publishTick = 2 * time.Second

func main() {
	config.LoadDotEnv("")

	host, err := descriptor.ResolveHostInfo()
	if err != nil {
		consolelog.Error_("worker: resolve host info: %v", err)
		os.Exit(1)
	}

	descFn := func() descriptor.Descriptor {
		sample := descriptor.SampleSystem()
		return descriptor.BuildDescriptor("1.0", host, sample, sample.CPUsTotal, 1024, descriptor.ModeDedicated)
	}

	client, err := brokerage.NewClient(config.BrokerageConfig(), descFn)
	if err != nil {
		consolelog.Error_("worker: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	consolelog.Success_("worker: publishing availability as %s", host.HostName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(publishTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			client.SetAvailability(true)
		case <-sig:
			consolelog.Info_("worker: withdrawing availability")
			client.SetAvailability(false)
			return
		}
	}
}
