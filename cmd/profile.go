package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/profile"
	"github.com/sells-group/leads-cli/internal/scrape"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Classify each lead's website and add profile columns",
	Long: `Fetches a few key pages (home, about, services, contact, locations,
plants, ready-mix) once per domain and records business_type,
service_keywords, location_detected, profile_confidence and signals on every
row of that domain.

Examples:
  leads-cli profile --in leads.csv --out leads_profiled.csv --site-concurrency 6`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("site-concurrency") {
			cfg.Profile.SiteConcurrency, _ = cmd.Flags().GetInt("site-concurrency")
		}
		if err := cfg.Validate("profile"); err != nil {
			return err
		}
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")

		p := buildProfiler(cfg)
		var domains int
		n, err := rewriteLeads(in, out, func(recs []model.LeadRecord) {
			domains = p.ProfileLeads(ctx, recs)
		})
		if err != nil {
			return eris.Wrap(err, "profile")
		}
		zap.L().Info("profile: rows profiled", zap.Int("rows", n), zap.Int("domains", domains), zap.String("output", out))
		return ctx.Err()
	},
}

func init() {
	profileCmd.Flags().String("in", "", "input lead CSV (required)")
	profileCmd.Flags().String("out", "", "output lead CSV (required, may equal --in)")
	profileCmd.Flags().Int("site-concurrency", 0, "domains profiled concurrently (overrides profile.site_concurrency)")
	_ = profileCmd.MarkFlagRequired("in")
	_ = profileCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(profileCmd)
}

func buildProfiler(c *config.Config) *profile.Profiler {
	client := scrape.NewHTTPClient(c.Fetch)
	paths := c.Profile.KeyPaths
	if len(paths) == 0 {
		paths = config.DefaultProfilePaths
	}
	fetcher := scrape.NewFetcher(scrape.NewLocalScraper(client, c.Fetch.UserAgent, c.Fetch.MaxBodyBytes), c.Fetch).WithPaths(paths)
	return profile.NewProfiler(fetcher, c.Profile.SiteConcurrency)
}
