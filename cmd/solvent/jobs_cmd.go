package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/solvent-hq/solvent/cmd/solvent/cli"
	"github.com/solvent-hq/solvent/internal/app"
)

// runJobsCommand handles `solvent jobs <trigger|stats|scheduled>` and exits
// without starting the HTTP server.
func runJobsCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: solvent jobs <trigger|stats|scheduled> [args]")
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect redis:", err)
		os.Exit(1)
	}
	defer jobsCLI.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: solvent jobs trigger <job> [tenant-id]")
			os.Exit(2)
		}
		tenant := ""
		if len(args) > 2 {
			tenant = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], tenant)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trigger:", err)
			os.Exit(1)
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stats:", err)
			os.Exit(1)
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scheduled:", err)
			os.Exit(1)
		}
		if len(tasks) == 0 {
			fmt.Println("no scheduled tasks")
			return
		}
		for _, task := range tasks {
			fmt.Printf("%s id=%s next=%s\n", task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown jobs command:", args[0])
		os.Exit(2)
	}
}
