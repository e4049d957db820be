package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the ledger admin and product count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp statsResponse
			if err := newClient(opts).getJSON(basePath+"/stats", &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			printTable(cmd.OutOrStdout(), []string{"Admin", "Products"},
				[][]string{{resp.Admin, strconv.FormatUint(resp.ProductCount, 10)}})
			return nil
		},
	}
}

func newAuditCmd(opts *globalOptions) *cobra.Command {
	var (
		handle    string
		actor     string
		source    string
		pageSize  int
		pageToken string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit events (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for k, v := range map[string]string{"handle": handle, "actor": actor, "source": source, "pageToken": pageToken} {
				if v != "" {
					q.Set(k, v)
				}
			}
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			path := "/api/audit/v1/events"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var resp auditListResponse
			if err := newClient(opts).getJSON(path, &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			rows := make([][]string, len(resp.Events))
			for i, ev := range resp.Events {
				rows[i] = []string{ev.CreatedAt, ev.Source, ev.EventType, ev.Actor, truncate(ev.Handle, 16), ev.Outcome}
			}
			printTable(cmd.OutOrStdout(), []string{"Time", "Source", "Type", "Actor", "Handle", "Outcome"}, rows)
			if resp.NextPageToken != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nMore results: --page-token %s\n", resp.NextPageToken)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&handle, "handle", "", "Only events about this product")
	f.StringVar(&actor, "actor", "", "Only events caused by this principal")
	f.StringVar(&source, "source", "", "Only events from this source (ledger or http)")
	f.IntVar(&pageSize, "page-size", 0, "Events per page (server default 20, max 100)")
	f.StringVar(&pageToken, "page-token", "", "Token of the page to fetch")
	return cmd
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health and readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(opts)

			var healthResp map[string]any
			if err := client.getJSON("/healthz", &healthResp); err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			var readyResp map[string]any
			if err := client.getJSON("/readyz", &readyResp); err != nil {
				// Not fatal: the server may still be starting.
				readyResp = map[string]any{"status": "unknown", "error": err.Error()}
			}

			combined := map[string]any{"health": healthResp, "readiness": readyResp}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, combined); ok {
				return err
			}

			status, _ := healthResp["status"].(string)
			uptime, _ := healthResp["uptime"].(string)
			ready, _ := readyResp["status"].(string)
			printTable(cmd.OutOrStdout(), []string{"Check", "Status"}, [][]string{
				{"Liveness", status},
				{"Uptime", uptime},
				{"Readiness", ready},
			})
			return nil
		},
	}
}
