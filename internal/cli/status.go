package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocs-tools/ocsdeck/internal/config"
	"github.com/ocs-tools/ocsdeck/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [agent]",
		Short: "One-shot health snapshot of configured panels",
		Long: `Polls every watched operation once, derives the health indicators,
and prints the result. With an agent argument only that panel is
shown. Exit status is 0 even when indicators are bad; the snapshot
itself succeeding is what the exit status reports.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := ""
			if len(args) == 1 {
				agent = args[0]
			}
			return runStatus(cmd.Context(), agent)
		},
	}
}

func runStatus(ctx context.Context, agent string) error {
	panels := cfg.Panels
	if agent != "" {
		panel, ok := cfg.Panel(agent)
		if !ok {
			return output.PrintCLIErrorOrJSON(output.PanelNotFoundError(agent), jsonOutput)
		}
		panels = []config.PanelConfig{panel}
	}

	client, cleanup, err := connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	resp := output.StatusResponse{TimestampedResponse: output.NewTimestamped()}
	now := time.Now()
	for _, panel := range panels {
		d, err := buildDeck(client, panel)
		if err != nil {
			return fail(err)
		}
		d.pollOnce(ctx, client)
		resp.Panels = append(resp.Panels, d.snapshot(client, now))
	}

	f := output.DefaultFormatter(jsonOutput)
	return f.OutputData(resp, func(w io.Writer) error {
		return renderStatusText(w, resp)
	})
}

func renderStatusText(w io.Writer, resp output.StatusResponse) error {
	f := output.New(output.WithWriter(w))
	for i, panel := range resp.Panels {
		if i > 0 {
			f.Line()
		}
		f.Textln("%s  [%s]  %s", panel.Agent, panel.Worst, panel.Activities)
		f.Textln("  router: %s  agent: %s", panel.Router, panel.Connected)

		if len(panel.Indicators) > 0 {
			tbl := output.NewTable(w, "SIGNAL", "VALUE", "AGE")
			for _, ind := range panel.Indicators {
				tbl.AddRow(ind.Name, ind.Value, ind.Age)
			}
			tbl.Render()
		}

		for _, sess := range panel.Sessions {
			line := "  " + sess.Op + ": " + sess.Status
			if sess.DataAge != "" {
				line += " (" + sess.DataAge + ")"
			}
			if sess.Message != "" {
				line += "  " + output.Truncate(sess.Message, 60)
			}
			f.Println(line)
		}
	}
	return nil
}
