package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/clean"
	"github.com/sells-group/leads-cli/internal/leadcsv"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop unusable rows and keep the best contacts per domain",
	Long: `Removes rows on disposable or social domains and rows with no email or
phone, optionally drops leads that are not a product fit, prefers named
mailboxes over role mailboxes and keeps the best few contacts per domain.
Each kept row gets contact_quality and a preferred_contact column. The
phone-only rows can also be written to a separate call list.

Examples:
  leads-cli clean --in leads_tagged.csv --out leads_clean.csv --require-fit
  leads-cli clean --in leads.csv --out clean.csv --out-call call_list.csv --max-contacts-per-domain 3`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		if f.Changed("max-contacts-per-domain") {
			cfg.Clean.MaxContactsPerDomain, _ = f.GetInt("max-contacts-per-domain")
		}
		if err := cfg.Validate("clean"); err != nil {
			return err
		}
		in, _ := f.GetString("in")
		out, _ := f.GetString("out")
		callOut, _ := f.GetString("out-call")

		opts := clean.OptionsFromConfig(cfg.Clean)
		opts.KeepRoles, _ = f.GetBool("keep-roles")
		opts.RequireFit, _ = f.GetBool("require-fit")
		opts.AllowFacebook, _ = f.GetBool("allow-facebook")
		opts.EmailOnly, _ = f.GetBool("email-only")

		if _, err := cleanLeads(in, out, callOut, opts); err != nil {
			return eris.Wrap(err, "clean")
		}
		return nil
	},
}

func init() {
	f := cleanCmd.Flags()
	f.String("in", "", "input lead CSV (required)")
	f.String("out", "", "output lead CSV (required, may equal --in)")
	f.String("out-call", "", "also write the phone-only rows to this CSV")
	f.Int("max-contacts-per-domain", 0, "contacts kept per domain (overrides clean.max_contacts_per_domain)")
	f.Bool("keep-roles", false, "keep role mailboxes even when the domain has a named one")
	f.Bool("require-fit", false, "drop leads that are not a product fit")
	f.Bool("allow-facebook", false, "do not block facebook.com contacts")
	f.Bool("email-only", false, "drop phone-only rows")
	_ = cleanCmd.MarkFlagRequired("in")
	_ = cleanCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(cleanCmd)
}

// cleanLeads runs the cleaner over in and writes the kept rows to out, and
// the phone-only subset to callOut when it is set.
func cleanLeads(in, out, callOut string, opts clean.Options) (clean.Summary, error) {
	recs, extras, err := leadcsv.ReadLeads(in)
	if err != nil {
		return clean.Summary{}, err
	}
	kept, sum := clean.Clean(recs, opts)

	columns := leadcsv.LeadColumns(append(extras, clean.PreferredContactColumn))
	if err := leadcsv.WriteLeads(out, kept, columns); err != nil {
		return sum, err
	}
	if callOut != "" && !opts.EmailOnly {
		if err := leadcsv.WriteLeads(callOut, clean.CallList(kept), columns); err != nil {
			return sum, err
		}
	}

	zap.L().Info("clean: rows kept",
		zap.Int("input", sum.Input),
		zap.Int("kept", sum.Kept),
		zap.Int("blocked", sum.Blocked),
		zap.Int("no_contact", sum.NoContact),
		zap.Int("not_fit", sum.Unfit),
		zap.Int("dropped", sum.Dropped),
		zap.Int("phone_only", sum.PhoneOnly),
		zap.String("output", out),
	)
	return sum, nil
}
