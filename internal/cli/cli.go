package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avivheldman/WorkFlow/internal/config"
	internal_http "github.com/avivheldman/WorkFlow/internal/http"
	"github.com/avivheldman/WorkFlow/internal/log"
	"github.com/avivheldman/WorkFlow/internal/metrics"
	internal_storage "github.com/avivheldman/WorkFlow/internal/storage"
	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/service"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	store    storage.Store
	backend  string
	registry *service.Registry
	metrics  *metrics.Recorder
	svc      *service.WorkflowService
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	envFile, err := cmd.Flags().GetString("env")
	if err != nil {
		return nil, err
	}
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	log.SetLevel(cfg.Log.Level)
	logger := log.GetLogger()
	logger.Debugf("Loaded configuration: backend=%s max_concurrent=%d admission=%s",
		cfg.Store.Backend, cfg.Workflow.MaxConcurrent, cfg.Workflow.Admission)

	store, backend := internal_storage.InitStore(ctx, cfg, logger)

	registry := service.NewRegistry()
	if err := service.RegisterBuiltinTasks(registry); err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "failed to register builtin tasks")
	}

	rec := metrics.NewRecorder()
	svc := service.NewWorkflowService(ctx, store, registry, logger,
		service.WithMaxConcurrentWorkflows(cfg.Workflow.MaxConcurrent),
		service.WithAdmissionMode(service.AdmissionMode(cfg.Workflow.Admission)),
		service.WithMetrics(rec),
	)
	return &app{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		registry: registry,
		metrics:  rec,
		svc:      svc,
	}, nil
}

func (a *app) Close() error {
	a.svc.Wait()
	return a.store.Close()
}

// SetupCLI registers the workflow commands on rootCmd.
func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("env", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.SilenceUsage = true

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			logger := log.GetLogger()
			logger.Infof("Workflow engine using %s store, tasks: %v", a.backend, a.registry.Names())
			e := internal_http.NewServer(a.svc, a.store, a.metrics.Gatherer(), logger)
			return internal_http.StartServer(ctx, e, a.cfg.HTTPAddr(), a.svc, logger)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow from a YAML or JSON spec file and print its final state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			spec, err := readSpec(path)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			wf, err := a.svc.CreateWorkflow(cmd.Context(), spec)
			if err != nil {
				return errors.Wrap(err, "failed to run workflow")
			}
			return printJSON(cmd.OutOrStdout(), wf)
		},
	}
	runCmd.Flags().StringP("file", "f", "", "Workflow spec file")
	_ = runCmd.MarkFlagRequired("file")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			wf, err := a.svc.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), wf)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			workflows, err := a.svc.ListWorkflows(cmd.Context())
			if err != nil {
				return err
			}
			listWorkflows(cmd.OutOrStdout(), workflows)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a workflow from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteWorkflow(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return errors.Wrapf(service.ErrWorkflowNotFound, "workflow %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, runCmd, getCmd, listCmd, deleteCmd)
}

// readSpec parses a workflow spec file. JSON is valid YAML, so both work.
func readSpec(path string) (models.WorkflowSpec, error) {
	var spec models.WorkflowSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, errors.Wrap(err, "failed to read spec file")
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, errors.Wrapf(err, "failed to parse spec file %s", path)
	}
	return spec, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listWorkflows(w io.Writer, workflows []models.Workflow) {
	if len(workflows) == 0 {
		fmt.Fprintf(w, "No workflows found.\n")
		return
	}
	fmt.Fprintf(w, "Workflows:\n")
	for _, wf := range workflows {
		fmt.Fprintf(w, "- ID: %s, Name: %s, Status: %s, Created: %s\n",
			wf.ID, wf.Name, wf.Status, wf.CreatedAt.Format(time.RFC3339))
	}
}
