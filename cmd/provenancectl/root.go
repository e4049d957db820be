package main

import (
	"os"

	"github.com/spf13/cobra"
)

const basePath = "/api/provenance/v1"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	serverURL string
	outputFmt string
	as        string
	token     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "provenancectl",
		Short: "CLI for the provenance ledger server",
		Long: `provenancectl registers products, records their supply-chain journey and
reads back provenance and sustainability totals from a provenance server.

Mutations act as the principal given with --as (sent as X-Remote-User) or
carried by the bearer token given with --token.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.serverURL, "server", envOrDefault("PROVENANCE_SERVER", "http://localhost:8080"), "Provenance server URL")
	flags.StringVarP(&opts.outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	flags.StringVar(&opts.as, "as", os.Getenv("PROVENANCE_AS"), "Principal to act as (X-Remote-User)")
	flags.StringVar(&opts.token, "token", os.Getenv("PROVENANCE_TOKEN"), "Bearer token")

	cmd.AddCommand(
		newAuthorizeCmd(opts),
		newRevokeCmd(opts),
		newStakeholderCmd(opts),
		newRegisterCmd(opts),
		newAdvanceCmd(opts),
		newProvenanceCmd(opts),
		newTotalsCmd(opts),
		newStagesCmd(opts),
		newStatsCmd(opts),
		newAuditCmd(opts),
		newHealthCmd(opts),
	)
	return cmd
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
