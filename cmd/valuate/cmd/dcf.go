package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"FinValue/internal/domain/models"
	xhttp "FinValue/pkg/http"
)

var (
	dcfReq        models.DCFRequest
	dcfWACC       float64
	dcfTermGrowth float64
)

var dcfCmd = &cobra.Command{
	Use:   "dcf TICKER",
	Short: "Discounted cash flow valuation from reported free cash flow",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := dcfRequest(cmd, args)
		if err != nil {
			return err
		}
		app, err := valuators()
		if err != nil {
			return err
		}
		rep, err := app.DCF.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), rep,
			func(w io.Writer) error { return app.Renderer.RenderDCF(w, rep) },
			func(w io.Writer) error { return app.Exporter.ExportDCF(w, rep) },
		)
	},
}

// dcfRequest builds the request from args and flags. Rates are only set when
// their flag was given, so an explicit 0 is kept.
func dcfRequest(cmd *cobra.Command, args []string) (models.DCFRequest, error) {
	req := dcfReq
	ticker, err := tickerArg(args, req.Ticker)
	if err != nil {
		return req, err
	}
	req.Ticker = ticker
	if cmd.Flags().Changed("wacc") {
		req.WACC = models.Float(dcfWACC)
	}
	if cmd.Flags().Changed("terminal-growth") {
		req.TerminalGrowth = models.Float(dcfTermGrowth)
	}
	if v := xhttp.ValidateStruct(cmd.Context(), &req); v != nil {
		return req, xhttp.ValidationErrors(v)
	}
	return req, nil
}

func init() { initDCFFlags() }

func initDCFFlags() {
	f := dcfCmd.Flags()
	f.StringVar(&dcfReq.Ticker, "ticker", "", "ticker to value (or pass it as the argument)")
	f.IntVar(&dcfReq.Horizon, "horizon", 0, "projection years (default from config)")
	f.Float64Var(&dcfWACC, "wacc", 0, "discount rate (default from config)")
	f.Float64Var(&dcfTermGrowth, "terminal-growth", 0, "perpetual growth rate (default from config)")
	f.StringVar(&dcfReq.Growth, "growth", "", "override the estimated growth rate")
	f.BoolVar(&dcfReq.RequirePerShare, "require-per-share", false, "fail when shares outstanding are unknown")
}
