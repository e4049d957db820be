package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd(opts *globalOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "authorize PRINCIPAL --role ROLE",
		Short: "Authorize a stakeholder (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp stakeholderResponse
			body := map[string]string{"principal": args[0], "role": role}
			if err := newClient(opts).postJSON(basePath+"/stakeholders", body, &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized %s as %s\n", resp.Principal, resp.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role label, e.g. Farmer or Mill")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newRevokeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke PRINCIPAL",
		Short: "Revoke a stakeholder (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(opts).delete(basePath + "/stakeholders/" + url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
			return nil
		},
	}
}

func newStakeholderCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stakeholder PRINCIPAL",
		Short: "Show whether a principal is authorized and its role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp stakeholderResponse
			if err := newClient(opts).getJSON(basePath+"/stakeholders/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			printTable(cmd.OutOrStdout(), []string{"Principal", "Authorized", "Role"},
				[][]string{{resp.Principal, strconv.FormatBool(resp.Authorized), resp.Role}})
			return nil
		},
	}
}
