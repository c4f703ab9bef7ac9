package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/supportdesk/backend/internal/cache/redis"
)

func init() {
	rootCmd.AddCommand(cacheFlushCmd)
}

var cacheFlushCmd = &cobra.Command{
	Use:   "cache-flush",
	Short: "Drop every cached answer",
	Long: `Drop every cached answer from redis. Cached answers are keyed by corpus
fingerprint, so this is only needed to reclaim memory after a corpus change.`,
	Args: cobra.NoArgs,
	RunE: runCacheFlush,
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled {
		fmt.Fprintln(cmd.OutOrStdout(), "Answer cache is disabled; nothing to flush.")
		return nil
	}

	client, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Redis.TTLSeconds)*time.Second,
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.InvalidateAnswers(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Answer cache flushed.")
	return nil
}
