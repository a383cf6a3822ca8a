// Command buildclient is an example build client: it resolves the
// currently-available workers via internal/brokerage and prints them.
// It stands in for the out-of-scope job scheduler that would otherwise
// consume this address list to dispatch compilation jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fbroker/internal/brokerage"
	"fbroker/internal/config"
	"fbroker/internal/consolelog"
)

// findWorkersTimeout bounds the whole FindWorkers call: at most the
// coordinator transport's 2000ms dial timeout plus one round trip
// (spec.md §5).
const findWorkersTimeout = 3 * time.Second

func main() {
	config.LoadDotEnv("")

	client, err := brokerage.NewClient(config.BrokerageConfig(), nil)
	if err != nil {
		consolelog.Error_("buildclient: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), findWorkersTimeout)
	defer cancel()

	workers := client.FindWorkers(ctx)
	if len(workers) == 0 {
		consolelog.Warn_("buildclient: no workers available")
		return
	}

	for _, w := range workers {
		fmt.Println(w)
	}
}
