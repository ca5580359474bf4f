package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/services"
)

// ServeCmd runs the HTTP trigger API next to the worker loop.
func ServeCmd() *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the print worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.processor()
			if err != nil {
				return err
			}
			h := &services.Handler{
				Jobs:      a.store,
				Processor: p,
				Monitor:   a.monitor(),
				Printer:   a.cfg.Printer,
				Secret:    a.cfg.HTTP.Secret,
				Logger:    a.logger.Named("http"),
			}
			if h.Secret == "" {
				a.logger.Warnw("No HTTP secret configured, every /print request will be rejected")
			}

			tasks := []func(context.Context) error{
				func(ctx context.Context) error {
					return services.Serve(ctx, a.cfg.HTTP.Addr, services.NewRouter(h), a.logger)
				},
			}
			if !noWorker {
				tasks = append(tasks, a.worker(p).Run)
			}
			return a.runAll(ctx, tasks...)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "only serve HTTP, rely on /print/process or cron")
	return cmd
}

func WorkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run the print worker loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.processor()
			if err != nil {
				return err
			}
			return a.worker(p).Run(ctx)
		},
	}
}

// ProcessCmd processes one batch, for cron.
func ProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Process one batch of pending jobs and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.processor()
			if err != nil {
				return err
			}
			result, err := p.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func TestPrintCmd() *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "test-print",
		Short: "Queue a test receipt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.formatter()
			if err != nil {
				return err
			}
			doc := f.TestDocument(time.Now())
			job, err := a.store.Enqueue(ctx, doc.OrderNumber, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s test receipt queued as %s\n", green("✓"), job.ID)

			if !now {
				return nil
			}
			p, err := a.processor()
			if err != nil {
				return err
			}
			result, err := p.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "process the queue right away")
	return cmd
}

// EnqueueCmd is the producer side for orders exported as JSON.
func EnqueueCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Format an order JSON file and queue its receipt",
		Long: `Reads an order (or an {"success":true,"data":{"orders":[...]}} payload)
and queues one receipt per order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			orders, err := decodeOrders(data)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.formatter()
			if err != nil {
				return err
			}
			for _, order := range orders {
				doc := f.Format(order)
				job, err := a.store.Enqueue(ctx, orderRef(order), doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s order %s queued as %s\n", green("✓"), doc.OrderNumber, job.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "order JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func decodeOrders(data []byte) ([]model.Order, error) {
	var payload model.OrderPayload
	if err := json.Unmarshal(data, &payload); err == nil && len(payload.Data.Orders) > 0 {
		return payload.Data.Orders, nil
	}
	var order model.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("not an order: %w", err)
	}
	if len(order.Items) == 0 && order.OrderNumber == "" && order.ID == 0 {
		return nil, errors.New("not an order: no id, number or items")
	}
	return []model.Order{order}, nil
}

func orderRef(order model.Order) string {
	if order.ID != 0 {
		return fmt.Sprint(order.ID)
	}
	return order.OrderNumber
}

func JobsCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List print jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			jobs, err := a.store.List(ctx, model.JobStatus(status), limit)
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "pending, in_progress, printed or failed")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum jobs to show")
	return cmd
}

func RequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Queue a fresh copy of a failed or printed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.store.Requeue(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s requeued as %s\n", green("✓"), job.ID)
			return nil
		},
	}
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the print_jobs table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date (%s)\n", green("✓"), a.cfg.Database.Driver)
			return nil
		},
	}
}
