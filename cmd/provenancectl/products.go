package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairtrace/provenance/pkg/ledger"
)

// addRecordFlags binds the tracking record fields to cmd.
func addRecordFlags(cmd *cobra.Command, in *ledger.RecordInput) {
	f := cmd.Flags()
	f.StringVar(&in.Location, "location", "", "Where the stage happened")
	f.StringVar(&in.Certifications, "certifications", "", "Certifications held at this stage")
	f.Uint64Var(&in.CarbonFootprint, "carbon", 0, "Carbon footprint of this stage in grams CO2")
	f.StringVar(&in.WorkingConditions, "working-conditions", "", "Working conditions at this stage")
	f.Uint64Var(&in.FairWagesPaid, "wages", 0, "Fair wages paid at this stage in minor currency units")
	f.StringVar(&in.Notes, "notes", "", "Free-form notes")
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var in ledger.RegisterInput
	cmd := &cobra.Command{
		Use:   "register --code CODE --name NAME",
		Short: "Register a product at RawMaterial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]string
			if err := newClient(opts).postJSON(basePath+"/products", in, &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp["handle"])
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Code, "code", "", "Product code, e.g. an SKU")
	cmd.Flags().StringVar(&in.Name, "name", "", "Product name")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	addRecordFlags(cmd, &in.Record)
	return cmd
}

func newAdvanceCmd(opts *globalOptions) *cobra.Command {
	var in ledger.RecordInput
	cmd := &cobra.Command{
		Use:   "advance HANDLE STAGE",
		Short: "Move a product forward to STAGE (name or ordinal)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := ledger.ParseStage(args[1])
			if err != nil {
				return err
			}
			var resp provenanceResponse
			body := map[string]any{"stage": stage, "record": in}
			if err := newClient(opts).postJSON(basePath+"/products/"+url.PathEscape(args[0])+"/stages", body, &resp); err != nil {
				return err
			}
			return printProvenance(cmd.OutOrStdout(), opts.outputFmt, resp)
		},
	}
	addRecordFlags(cmd, &in)
	return cmd
}

func newProvenanceCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "provenance HANDLE",
		Aliases: []string{"get"},
		Short:   "Show a product and its full journey",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp provenanceResponse
			if err := newClient(opts).getJSON(basePath+"/products/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return printProvenance(cmd.OutOrStdout(), opts.outputFmt, resp)
		},
	}
}

func printProvenance(w io.Writer, format string, resp provenanceResponse) error {
	if ok, err := printStructured(w, format, resp); ok {
		return err
	}
	if p := resp.Product; p != nil {
		fmt.Fprintf(w, "Product:  %s (%s)\n", p.Name, p.Code)
		fmt.Fprintf(w, "Handle:   %s\n", p.Handle)
		fmt.Fprintf(w, "Stage:    %s\n", p.CurrentStage)
		fmt.Fprintf(w, "Registrar: %s\n\n", p.Registrar)
	}
	rows := make([][]string, len(resp.Journey))
	for i, rec := range resp.Journey {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			rec.Stage.String(),
			string(rec.Handler),
			truncate(rec.Location, 24),
			strconv.FormatUint(rec.CarbonFootprint, 10),
			strconv.FormatUint(rec.FairWagesPaid, 10),
			rec.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	printTable(w, []string{"#", "Stage", "Handler", "Location", "Carbon", "Wages", "Timestamp"}, rows)
	return nil
}

func newTotalsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "totals HANDLE",
		Short: "Show the carbon, wage and journey-length totals of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ledger.Totals
			if err := newClient(opts).getJSON(basePath+"/products/"+url.PathEscape(args[0])+"/totals", &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			printTable(cmd.OutOrStdout(), []string{"Carbon", "Wages", "Journey"}, [][]string{{
				strconv.FormatUint(resp.CarbonFootprint, 10),
				strconv.FormatUint(resp.FairWagesPaid, 10),
				strconv.Itoa(resp.JourneyLength),
			}})
			return nil
		},
	}
}

func newStagesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the stages and the moves allowed from each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Stages []stageInfo `json:"stages"`
			}
			if err := newClient(opts).getJSON(basePath+"/stages", &resp); err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), opts.outputFmt, resp); ok {
				return err
			}
			rows := make([][]string, len(resp.Stages))
			for i, s := range resp.Stages {
				next := make([]string, len(s.Next))
				for j, n := range s.Next {
					next[j] = n.String()
				}
				rows[i] = []string{strconv.Itoa(s.Ordinal), s.Stage.String(), strings.Join(next, ", ")}
			}
			printTable(cmd.OutOrStdout(), []string{"Ordinal", "Stage", "Next"}, rows)
			return nil
		},
	}
}
