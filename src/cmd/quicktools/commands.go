package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"quick-tools-overlay/src/clipboard"
	"quick-tools-overlay/src/host"
	"quick-tools-overlay/src/icons"
	"quick-tools-overlay/src/singleinstance"
	"quick-tools-overlay/src/tools"
	"quick-tools-overlay/src/tray"
)

const commandTimeout = 5 * time.Second

// ack runs a host command that answers with an acknowledgement string.
func ack(e *env, fn func(*host.Host, context.Context) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := e.load(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		msg, err := fn(e.host(), ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}
}

func newStartCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Show the floating bubble",
		Args:  cobra.NoArgs,
		RunE:  ack(e, (*host.Host).Start),
	}
}

func newStopCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Remove the floating bubble",
		Args:  cobra.NoArgs,
		RunE:  ack(e, (*host.Host).Stop),
	}
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show overlay status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			h := e.host()
			ok := color.New(color.FgGreen, color.Bold)
			bad := color.New(color.FgRed, color.Bold)
			faint := color.New(color.Faint)

			tbl := uitable.New()
			tbl.MaxColWidth = 80
			if h.QueryRunning() {
				tbl.AddRow("Overlay:", ok.Sprint("running"))
			} else {
				tbl.AddRow("Overlay:", bad.Sprint("stopped"))
			}
			if h.QueryPermission() {
				tbl.AddRow("Display:", ok.Sprint("available"))
			} else {
				tbl.AddRow("Display:", bad.Sprint("unavailable"))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if port, found := singleinstance.NewClient().DetectResidentPort(ctx); found {
				tbl.AddRow("Resident:", fmt.Sprintf("127.0.0.1:%d", port))
			} else {
				tbl.AddRow("Resident:", faint.Sprintf("none on ports %v", singleinstance.ResidentPorts()))
			}
			tbl.AddRow("Tools:", fmt.Sprint(h.ToolList().Len()))
			tbl.AddRow("Store:", e.store.Dir())
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}

func newToolsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show or change the configured tools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			registry := icons.Default()
			if e.cfg.IconDir != "" {
				_, _ = registry.LoadDir(e.cfg.IconDir)
			}
			return printTools(cmd, e.host().ToolList(), registry)
		},
	}

	set := &cobra.Command{
		Use:   "set <json|->",
		Short: "Replace the tool list with a JSON array of {id,label,icon}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			return ack(e, func(h *host.Host, ctx context.Context) (string, error) {
				return h.UpdateConfig(ctx, payload)
			})(cmd, args)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default tools",
		Args:  cobra.NoArgs,
		RunE: ack(e, func(h *host.Host, ctx context.Context) (string, error) {
			return h.UpdateConfig(ctx, tools.DefaultJSON)
		}),
	}

	cmd.AddCommand(list, set, reset)
	return cmd
}

func printTools(cmd *cobra.Command, list tools.List, registry *icons.Registry) error {
	out := cmd.OutOrStdout()
	if list.Len() == 0 {
		fmt.Fprintln(out, color.New(color.Faint, color.Italic).Sprint(" none"))
		return nil
	}
	warn := color.New(color.FgHiYellow)
	tbl := uitable.New()
	tbl.MaxColWidth = 40
	tbl.AddRow("ID", "LABEL", "ICON")
	for _, t := range list.Entries() {
		icon := t.IconRef
		if _, ok := registry.Lookup(t.IconRef); !ok {
			icon = warn.Sprintf("%s (placeholder)", t.IconRef)
		}
		tbl.AddRow(t.ID, t.Label, icon)
	}
	fmt.Fprintln(out, tbl)
	return nil
}

func newExportCmd(e *env) *cobra.Command {
	var fromClipboard bool
	cmd := &cobra.Command{
		Use:   "export [file|-]",
		Short: "Save PNG bytes into the gallery directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			var data []byte
			var err error
			switch {
			case fromClipboard:
				data, err = clipboard.ReadImage()
			case len(args) == 0 || args[0] == "-":
				data, err = readAll(cmd)
			default:
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			loc, err := e.host().ExportImage(data)
			if errors.Is(err, host.ErrNoImageData) {
				return fmt.Errorf("%s: %w", host.CodeNoBytes, err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromClipboard, "from-clipboard", false, "Read the image from the clipboard")
	return cmd
}

func readAll(cmd *cobra.Command) ([]byte, error) {
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	return b, nil
}

func newEventsCmd(e *env) *cobra.Command {
	var act bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream tool taps from the running overlay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			dispatcher := host.NewDispatcher(clipboard.ReadText)
			return e.host().Events(ctx, func(id string) {
				if !act {
					fmt.Fprintf(out, "tool-tapped %s\n", id)
					return
				}
				if err := dispatcher.Dispatch(ctx, id, out); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&act, "act", false, "Run the host action for each tapped tool")
	return cmd
}

func newPermissionCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Check or request the permission to draw overlays",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Report whether overlays can be drawn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.host().QueryPermission())
			return nil
		},
	}
	request := &cobra.Command{
		Use:   "request",
		Short: "Open the system settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			return e.host().RequestPermission()
		},
	}
	cmd.AddCommand(check, request)
	return cmd
}

func newTrayCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the tray menu that drives the overlay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			tray.Run(ctx, e.host())
			return nil
		},
	}
}
