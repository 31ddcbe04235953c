package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/M-Affan01/HealthMonitor/internal/domain/risk"
	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/sandbox"
	"github.com/M-Affan01/HealthMonitor/migrations"
)

// cliActor is the identity used for changes made from the command line.
var cliActor = auth.SystemActor("cli")

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func thresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Inspect or change the alert thresholds",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current thresholds as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				cfg, err := eng.svc.GetThresholds(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), cfg)
			})
		},
	})

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Apply a YAML threshold profile on top of the current values",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			patch, err := threshold.LoadProfile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				cfg, err := eng.svc.UpdateThresholds(ctx, cliActor, patch)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), cfg)
			})
		},
	}
	importCmd.Flags().String("file", "", "Path to the YAML profile")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)

	return cmd
}

func riskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Patient risk maintenance",
	}

	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute the risk snapshot of one patient or all active patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			raw, _ := cmd.Flags().GetString("patient")

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				if all {
					concurrency, _ := cmd.Flags().GetInt("concurrency")
					sweeper := risk.NewSweeper(eng.patients, sweepRecompute(eng.svc), concurrency, eng.logger)
					res, err := sweeper.RunOnce(ctx)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), res)
				}

				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --patient %q: %w", raw, err)
				}
				snap, err := eng.svc.RecomputeRisk(ctx, cliActor, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
	recomputeCmd.Flags().String("patient", "", "Patient id")
	recomputeCmd.Flags().Bool("all", false, "Recompute every active patient")
	recomputeCmd.Flags().Int("concurrency", 4, "Recomputes in flight with --all")
	recomputeCmd.MarkFlagsMutuallyExclusive("patient", "all")
	recomputeCmd.MarkFlagsOneRequired("patient", "all")
	cmd.AddCommand(recomputeCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo patients and replay readings through ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := defaults
			sc.PatientCount, _ = cmd.Flags().GetInt("patients")
			sc.Doctors, _ = cmd.Flags().GetStringSlice("doctors")
			sc.Days, _ = cmd.Flags().GetInt("days")
			sc.AbnormalRate, _ = cmd.Flags().GetFloat64("abnormal-rate")
			sc.Seed, _ = cmd.Flags().GetInt64("seed")

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				res, err := sandbox.NewSeeder(eng.svc, sc, eng.logger).Run(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Int("patients", defaults.PatientCount, "Number of demo patients")
	cmd.Flags().StringSlice("doctors", defaults.Doctors, "Doctor ids assigned round-robin")
	cmd.Flags().Int("days", defaults.Days, "Days of history per patient")
	cmd.Flags().Float64("abnormal-rate", defaults.AbnormalRate, "Probability that a reading is out of band")
	cmd.Flags().Int64("seed", 0, "Random seed, 0 for time based")
	return cmd
}

// withEngine connects, builds the engine without event delivery and runs fn.
func withEngine(ctx context.Context, fn func(ctx context.Context, eng *engine) error) error {
	cfg, pool, logger, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	eng, err := newEngine(cfg, pool, nil, nil, logger)
	if err != nil {
		return err
	}
	return fn(ctx, eng)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
