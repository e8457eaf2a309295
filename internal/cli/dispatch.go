package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ocs-tools/ocsdeck/internal/config"
	"github.com/ocs-tools/ocsdeck/internal/control"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/output"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <agent> <task> [key=value...]",
		Short: "Run an agent task",
		Long: `Dispatches a one-shot task to an agent. Extra key=value arguments
become task parameters; values parse as bool, number, or string.

  ocsdeck run thermo-1 set_channel channel=4`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[2:])
			if err != nil {
				return err
			}
			return dispatch(cmd.Context(), args[0], args[1], "run",
				func(ctx context.Context, c *control.Controller) error {
					return c.RunTask(ctx, args[1], params)
				})
		},
	}
}

func newAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <agent> <task>",
		Short: "Abort an agent task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd.Context(), args[0], args[1], "abort",
				func(ctx context.Context, c *control.Controller) error {
					return c.AbortTask(ctx, args[1])
				})
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <agent> <process> [key=value...]",
		Short: "Start an agent process",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[2:])
			if err != nil {
				return err
			}
			return dispatch(cmd.Context(), args[0], args[1], "start",
				func(ctx context.Context, c *control.Controller) error {
					return c.StartProc(ctx, args[1], params)
				})
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <agent> <process>",
		Short: "Stop an agent process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd.Context(), args[0], args[1], "stop",
				func(ctx context.Context, c *control.Controller) error {
					return c.StopProc(ctx, args[1])
				})
		},
	}
}

// dispatch wires a panel's controller, refreshes its sessions so the
// blocker guards judge current state, then applies the verb.
func dispatch(ctx context.Context, agent, op, verb string, apply func(context.Context, *control.Controller) error) error {
	panel, ok := cfg.Panel(agent)
	if !ok {
		return output.PrintCLIErrorOrJSON(output.PanelNotFoundError(agent), jsonOutput)
	}

	client, cleanup, err := connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	return dispatchWith(ctx, client, panel, agent, op, verb, apply)
}

func dispatchWith(ctx context.Context, client ocs.Client, panel config.PanelConfig, agent, op, verb string, apply func(context.Context, *control.Controller) error) error {
	d, err := buildDeck(client, panel)
	if err != nil {
		return fail(err)
	}
	if client.Connected() && !client.AgentConnected(d.addr) {
		return output.PrintCLIErrorOrJSON(output.AgentOfflineError(agent), jsonOutput)
	}
	d.pollOnce(ctx, client)

	if err := apply(ctx, d.controller); err != nil {
		return output.PrintCLIErrorOrJSON(dispatchError(agent, op, err), jsonOutput)
	}

	resp := output.DispatchResponse{
		TimestampedResponse: output.NewTimestamped(),
		Agent:               agent,
		Op:                  op,
		Verb:                verb,
		Success:             true,
	}
	f := output.DefaultFormatter(jsonOutput)
	if f.IsJSON() {
		return f.JSON(resp)
	}
	f.Textln("%s %s.%s: ok", verb, agent, op)
	return nil
}

// dispatchError maps controller sentinels onto actionable CLI errors.
func dispatchError(agent, op string, err error) *output.CLIError {
	e := output.NewCLIError(err.Error()).WithCause("dispatching to " + agent + "." + op)
	switch {
	case errors.Is(err, control.ErrAccessDenied):
		return e.WithCode("ACCESS_DENIED").WithHint(output.HintAccessDenied)
	case errors.Is(err, control.ErrBlocked):
		return e.WithCode("OP_BLOCKED").WithHint(output.HintOpBlocked)
	case errors.Is(err, control.ErrAlreadyRunning):
		return e.WithCode("ALREADY_RUNNING").WithHint("Wait for the task to finish, or abort it first")
	case errors.Is(err, control.ErrUnknownOperation), errors.Is(err, control.ErrWrongKind):
		return e.WithCode("BAD_OPERATION").WithHint("'ocsdeck status " + agent + "' lists the panel's operations")
	case errors.Is(err, ocs.ErrNotConnected):
		return e.WithCode("ROUTER_UNREACHABLE").WithHint(output.HintRouterUnreachable)
	}
	return e
}
