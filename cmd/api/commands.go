package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifelock-backend/internal/auth"
	"lifelock-backend/internal/db"
	"lifelock-backend/internal/usage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, err := db.Connect(cmd.Context(), cfg.DB.Driver, cfg.ConnString())
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer conn.Close()
		if err := db.Migrate(conn, db.Dialect(cfg.DB.Driver)); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("driver", cfg.DB.Driver))
		return nil
	},
}

var (
	importFile string
	importUser int
)

var importUsageCmd = &cobra.Command{
	Use:   "import-usage",
	Short: "Import Claude JSONL usage history",
	Long: `Reads a Claude transcript JSONL file and records every assistant message
that carries token usage. Re-importing the same file is a no-op: each line is
keyed by its message and request ids.

Example:
  lifelock-api import-usage --file ~/.claude/projects/app/session.jsonl --user 5`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()

		b, err := openBackends(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		_, rec := b.usageStack()
		res, importErr := usage.ImportJSONL(cmd.Context(), rec, f, importUser)
		if err := rec.Close(cmd.Context()); err != nil {
			importErr = errors.Join(importErr, fmt.Errorf("flush rollups: %w", err))
		}
		logger.Info("usage import finished",
			zap.String("file", importFile),
			zap.Int("lines", res.Lines),
			zap.Int("imported", res.Imported),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("skipped", res.Skipped),
		)
		if importErr != nil {
			return importErr
		}
		return printJSON(cmd, res)
	},
}

var (
	rollupDate string
	rollupUser int
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute the daily usage summary of one day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		loc := cfg.RollupLocation()
		day, err := time.ParseInLocation("2006-01-02", rollupDate, loc)
		if err != nil {
			return fmt.Errorf("--date must be yyyy-mm-dd: %w", err)
		}

		b, err := openBackends(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		store := usage.NewSQLStore(b.conn, b.dialect)
		summary, err := usage.RollupDay(cmd.Context(), store, rollupUser, day, loc)
		if err != nil {
			return err
		}
		if b.rdb != nil {
			if err := usage.NewStatsCache(b.rdb, cfg.Redis.StatsTTL).Invalidate(cmd.Context(), rollupUser); err != nil {
				logger.Warn("invalidate usage cache", zap.Error(err))
			}
		}
		return printJSON(cmd, summary)
	},
}

var (
	tokenUser int
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}
		token, err := auth.GenerateToken([]byte(cfg.Auth.JWTSecret), tokenUser, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var (
	estimateModel string
	estimateIn    int64
	estimateOut   int64
	estimateWrite int64
	estimateRead  int64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the USD cost of a model request",
	RunE: func(cmd *cobra.Command, _ []string) error {
		prices := usage.DefaultPrices()
		key, _ := prices.Resolve(estimateModel)
		tokens := usage.TokenCounts{
			Input:         estimateIn,
			Output:        estimateOut,
			CacheCreation: estimateWrite,
			CacheRead:     estimateRead,
		}
		return printJSON(cmd, map[string]any{
			"model":    estimateModel,
			"priced":   key,
			"tokens":   tokens,
			"cost_usd": prices.Estimate(estimateModel, tokens),
		})
	},
}

func init() {
	importUsageCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSONL file to import")
	importUsageCmd.Flags().IntVar(&importUser, "user", 0, "user id the events belong to")
	_ = importUsageCmd.MarkFlagRequired("file")

	rollupCmd.Flags().StringVar(&rollupDate, "date", time.Now().UTC().Format("2006-01-02"), "day to roll up (yyyy-mm-dd)")
	rollupCmd.Flags().IntVar(&rollupUser, "user", 0, "user id")

	tokenCmd.Flags().IntVar(&tokenUser, "user", 0, "user id to embed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to JWT_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")

	estimateCmd.Flags().StringVar(&estimateModel, "model", "", "model name")
	estimateCmd.Flags().Int64Var(&estimateIn, "input", 0, "input tokens")
	estimateCmd.Flags().Int64Var(&estimateOut, "output", 0, "output tokens")
	estimateCmd.Flags().Int64Var(&estimateWrite, "cache-creation", 0, "cache creation tokens")
	estimateCmd.Flags().Int64Var(&estimateRead, "cache-read", 0, "cache read tokens")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
