package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocs-tools/ocsdeck/internal/agentsim"
	"github.com/ocs-tools/ocsdeck/internal/output"
)

func newSimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim <schema-dir>",
		Short: "Run the deck against simulated agents",
		Long: `Loads agent schemas from a directory and runs the live monitor
against an in-process simulated fleet instead of the router.
Equivalent to 'ocsdeck --sim <schema-dir> monitor'.

When stdout is not a terminal the discovered agents are listed
instead of opening the monitor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			simDir = args[0]
			if !IsInteractive(os.Stdout) {
				return listSimAgents(args[0])
			}
			return runLiveMonitor(cmd.Context())
		},
	}
}

func listSimAgents(dir string) error {
	schemas, err := agentsim.LoadDir(dir)
	if err != nil {
		return fail(err)
	}

	type simAgent struct {
		Name      string   `json:"name"`
		Class     string   `json:"class,omitempty"`
		Tasks     []string `json:"tasks,omitempty"`
		Processes []string `json:"processes,omitempty"`
	}
	agents := make([]simAgent, 0, len(schemas))
	for _, s := range schemas {
		a := simAgent{Name: s.Name, Class: s.Class}
		for _, t := range s.Tasks {
			a.Tasks = append(a.Tasks, t.Name)
		}
		for _, p := range s.Processes {
			a.Processes = append(a.Processes, p.Name)
		}
		agents = append(agents, a)
	}

	f := output.DefaultFormatter(jsonOutput)
	return f.OutputData(agents, func(w io.Writer) error {
		tbl := output.NewTable(w, "AGENT", "CLASS", "TASKS", "PROCESSES")
		for _, a := range agents {
			tbl.AddRow(a.Name, a.Class,
				output.CountStr(len(a.Tasks), "task", "tasks"),
				output.CountStr(len(a.Processes), "process", "processes"))
		}
		tbl.Render()
		return nil
	})
}
