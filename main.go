package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dittomcp "Ditto/mcp"
)

var (
	flagAdbPath string
	flagDataDir string
	flagDevice  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "ditto",
		Short: "Record and replay Android touch interactions",
		Long: `Ditto records touch interactions on an Android device, binds them to
UI elements, and replays them later even when the layout has shifted.
It also runs scripted automation steps with fuzzy element matching.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogLevelInfo
			if flagVerbose {
				level = LogLevelDebug
			}
			cfg := PersistentLogConfig(dataDir())
			cfg.Level = level
			return InitLogger(cfg)
		},
	}

	root.PersistentFlags().StringVar(&flagAdbPath, "adb", "", "path to the adb binary (default: auto-detect)")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: platform config dir)")
	root.PersistentFlags().StringVarP(&flagDevice, "device", "d", "", "target device id (default: the only connected device)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDevicesCmd(),
		newRecordCmd(),
		newReplayCmd(),
		newRunCmd(),
		newWorkflowsCmd(),
		newHistoryCmd(),
		newMCPCmd(),
	)

	defer CloseLogger()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func dataDir() string {
	if flagDataDir != "" {
		return flagDataDir
	}
	return DefaultDataDir()
}

func newApp() (*App, error) {
	return NewApp(AppConfig{AdbPath: flagAdbPath, DataDir: flagDataDir})
}

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			devices, err := app.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No devices connected.")
				return nil
			}
			pinned := app.PinnedDevice()
			for _, d := range devices {
				line := fmt.Sprintf("%s\t%s", d.ID, d.State)
				if d.Model != "" {
					line += "\t" + d.Model
				}
				if d.ID == pinned {
					line += "\t(pinned)"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "pin <device-id>",
		Short: "Make a device the default target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.PinDevice(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unpin",
		Short: "Clear the pinned device",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.UnpinDevice()
		},
	})

	return cmd
}

func newRecordCmd() *cobra.Command {
	var name, output, snapshotDir string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record touch interactions into a workflow",
		Long: `Record captures touch events from the device, matches them to UI
elements, and classifies gestures. Interact with the device, then press
Ctrl+C to stop and save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			cfg := RecorderConfig{
				Name:        name,
				OutputPath:  output,
				SnapshotDir: snapshotDir,
			}
			if err := app.StartRecording(ctx, flagDevice, cfg); err != nil {
				return err
			}

			fmt.Println("Recording. Interact with the device; press Ctrl+C to stop and save.")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			cancel()

			w, err := app.StopRecording()
			if err != nil {
				return err
			}
			if len(w.Steps) == 0 {
				fmt.Println("No steps recorded.")
				return nil
			}
			fmt.Printf("Saved workflow %s with %d step(s).\n", w.ID, len(w.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "workflow name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the workflow to this file")
	cmd.Flags().StringVar(&snapshotDir, "snapshots", "", "directory for per-step UI snapshots")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var retries int
	var delayMs, retryDelayMs int
	var stopOnFailure bool

	cmd := &cobra.Command{
		Use:   "replay <workflow-id-or-file>",
		Short: "Replay a recorded workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := DefaultReplayConfig()
			cfg.Retries = retries
			cfg.StopOnFailure = stopOnFailure
			if cmd.Flags().Changed("delay") {
				cfg.Delay = millis(delayMs)
			}
			if cmd.Flags().Changed("retry-delay") {
				cfg.RetryDelay = millis(retryDelayMs)
			}

			target := args[0]
			var result AutomationResult
			if _, statErr := os.Stat(target); statErr == nil {
				result, err = app.ReplayWorkflowFile(flagDevice, target, cfg)
			} else {
				result, err = app.ReplayWorkflow(flagDevice, target, cfg)
			}
			if err != nil {
				return err
			}

			fmt.Println(result.Summary())
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 1, "re-attempts per failed step")
	cmd.Flags().IntVar(&delayMs, "delay", 500, "delay between steps in ms")
	cmd.Flags().IntVar(&retryDelayMs, "retry-delay", 1000, "delay between attempts in ms")
	cmd.Flags().BoolVar(&stopOnFailure, "stop-on-failure", false, "abort on the first failed step")
	return cmd
}

func newRunCmd() *cobra.Command {
	var continueOnFailure bool
	var screenshotDir string

	cmd := &cobra.Command{
		Use:   "run <script.json>",
		Short: "Run scripted automation steps",
		Long: `Run executes a JSON step script: either a bare array of steps or an
object with a "steps" array. Steps target elements by text/id/desc with
fuzzy matching, or by raw coordinates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := DefaultRunnerConfig()
			cfg.StopOnFailure = !continueOnFailure
			if screenshotDir != "" {
				cfg.ScreenshotOnFailure = true
				cfg.ScreenshotDir = screenshotDir
			}

			result, err := app.RunScriptFile(flagDevice, args[0], cfg)
			if err != nil {
				return err
			}

			fmt.Println(result.Summary())
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "keep running after a failed step")
	cmd.Flags().StringVar(&screenshotDir, "screenshot-dir", "", "capture a screenshot after each failed step")
	return cmd
}

func newWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Manage the workflow library",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			workflows, err := app.ListWorkflows()
			if err != nil {
				return err
			}
			if len(workflows) == 0 {
				fmt.Println("No workflows stored.")
				return nil
			}
			for _, w := range workflows {
				name := w.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("%s\t%s\t%d step(s)\t%s\n", w.ID, name, len(w.Steps), w.CreatedAt)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one workflow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			w, err := app.GetWorkflow(args[0])
			if err != nil {
				return err
			}
			data, err := SerializeWorkflow(w)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.DeleteWorkflow(args[0])
		},
	})

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent replay and script runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.RunHistory(flagDevice, limit)
			if err != nil {
				return err
			}
			out, err := MarshalRuns(records)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP stdio interface",
		Long:  `Exposes workflow and automation operations as MCP tools over stdio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; logs must not pollute it.
			cfg := PersistentLogConfig(dataDir())
			cfg.Console = false
			if err := InitLogger(cfg); err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			return dittomcp.Serve(app)
		},
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
