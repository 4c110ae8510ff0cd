package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"FinValue/internal/domain/models"
	xhttp "FinValue/pkg/http"
)

var compsReq models.CompsRequest

var compsCmd = &cobra.Command{
	Use:   "comps TICKER --peers A,B",
	Short: "Value a company against its peers' multiples",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := compsRequest(cmd, args)
		if err != nil {
			return err
		}
		app, err := valuators()
		if err != nil {
			return err
		}
		rep, err := app.Comps.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), rep,
			func(w io.Writer) error { return app.Renderer.RenderComps(w, rep) },
			func(w io.Writer) error { return app.Exporter.ExportComps(w, rep) },
		)
	},
}

func compsRequest(cmd *cobra.Command, args []string) (models.CompsRequest, error) {
	req := compsReq
	ticker, err := tickerArg(args, req.Ticker)
	if err != nil {
		return req, err
	}
	req.Ticker = ticker
	if v := xhttp.ValidateStruct(cmd.Context(), &req); v != nil {
		return req, xhttp.ValidationErrors(v)
	}
	return req, nil
}

func init() { initCompsFlags() }

func initCompsFlags() {
	f := compsCmd.Flags()
	f.StringVar(&compsReq.Ticker, "ticker", "", "target ticker (or pass it as the argument)")
	f.StringVar(&compsReq.Peers, "peers", "", "comma separated peer tickers")
	f.StringVar(&compsReq.Stat, "stat", "", "peer statistic: mean, median, min or max")
	f.StringVar(&compsReq.Multiples, "multiples", "", "comma separated multiples, empty for all")
	_ = compsCmd.MarkFlagRequired("peers")
}
