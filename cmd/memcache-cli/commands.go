package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipelined/memcache"
)

type config struct {
	Addr    string
	Timeout time.Duration
}

func newConfig() *config {
	addr := os.Getenv("MEMCACHE_ADDR")
	if addr == "" {
		addr = "localhost:11211"
	}
	return &config{
		Addr:    addr,
		Timeout: 10 * time.Second,
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// withClient dials the server, runs fn and tears the connection down.
func withClient(cfg *config, logger *zap.Logger, fn func(ctx context.Context, client *memcache.Client) error) error {
	client, err := memcache.NewClient(memcache.Config{
		Addr:   cfg.Addr,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Addr, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	return fn(ctx, client)
}

// parseTTL maps a seconds argument to a TTL: 0 means never expire.
func parseTTL(arg string) (memcache.TTL, error) {
	secs, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || secs < 0 {
		return memcache.TTL{}, fmt.Errorf("invalid ttl %q", arg)
	}
	if secs == 0 {
		return memcache.Indefinite, nil
	}
	return memcache.ExpiresIn(time.Duration(secs) * time.Second), nil
}

func newRootCommand(cfg *config, logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "memcache-cli",
		Short:         "Interact with a memcached server over the meta protocol",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "server address (host:port)")

	var ttlSecs int64

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				value, found, err := client.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Println(string(value))
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				var ttl memcache.TTL
				if ttlSecs > 0 {
					ttl = memcache.ExpiresIn(time.Duration(ttlSecs) * time.Second)
				}
				return client.Set(ctx, args[0], []byte(args[1]), ttl)
			})
		},
	}
	set.Flags().Int64Var(&ttlSecs, "ttl", 0, "time to live in seconds (0 = server default)")

	add := &cobra.Command{
		Use:   "add <key> <value>",
		Short: "Store a key-value pair only if the key does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				var ttl memcache.TTL
				if ttlSecs > 0 {
					ttl = memcache.ExpiresIn(time.Duration(ttlSecs) * time.Second)
				}
				return client.Add(ctx, args[0], []byte(args[1]), ttl)
			})
		},
	}
	add.Flags().Int64Var(&ttlSecs, "ttl", 0, "time to live in seconds (0 = server default)")

	del := &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del"},
		Short:   "Delete a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				return client.Delete(ctx, args[0])
			})
		},
	}

	touch := &cobra.Command{
		Use:   "touch <key> <ttl-seconds>",
		Short: "Update a key's TTL (0 = never expire)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				ttl, err := parseTTL(args[1])
				if err != nil {
					return err
				}
				return client.Touch(ctx, args[0], ttl)
			})
		},
	}

	incr := &cobra.Command{
		Use:   "incr <key> [delta]",
		Short: "Increment a numeric value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				delta, err := parseDelta(args)
				if err != nil {
					return err
				}
				value, err := client.Increment(ctx, args[0], delta)
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			})
		},
	}

	decr := &cobra.Command{
		Use:   "decr <key> [delta]",
		Short: "Decrement a numeric value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				delta, err := parseDelta(args)
				if err != nil {
					return err
				}
				value, err := client.Decrement(ctx, args[0], delta)
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show client operation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, logger, func(ctx context.Context, client *memcache.Client) error {
				// Probe the connection so the snapshot reflects a live server.
				if _, _, err := client.Get(ctx, "stats_probe"); err != nil {
					return err
				}
				printStats(client.Stats())
				return nil
			})
		},
	}

	root.AddCommand(get, set, add, del, touch, incr, decr, stats)
	return root
}

func printStats(stats memcache.ClientStats) {
	fmt.Printf("gets:        %d\n", stats.Gets)
	fmt.Printf("get_hits:    %d\n", stats.GetHits)
	fmt.Printf("sets:        %d\n", stats.Sets)
	fmt.Printf("adds:        %d\n", stats.Adds)
	fmt.Printf("deletes:     %d\n", stats.Deletes)
	fmt.Printf("touches:     %d\n", stats.Touches)
	fmt.Printf("arithmetics: %d\n", stats.Arithmetics)
	fmt.Printf("errors:      %d\n", stats.Errors)
}

func parseDelta(args []string) (uint64, error) {
	if len(args) < 2 {
		return 1, nil
	}
	delta, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid delta %q", args[1])
	}
	return delta, nil
}
