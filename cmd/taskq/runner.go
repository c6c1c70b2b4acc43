package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/taskq/internal/config"
	taskqprom "github.com/utkarsh5026/taskq/observability/prometheus"
	"github.com/utkarsh5026/taskq/pool"
	"github.com/utkarsh5026/taskq/queue"
	"github.com/utkarsh5026/taskq/task"
)

const poolCloseTimeout = 5 * time.Second

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

type sleepResult = task.Result[time.Duration]

// execute runs one demo collection described by cfg and writes the report
// to out.
func execute(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	runID := uuid.New()
	log = log.With("run_id", runID.String())

	order, err := task.ParseOrder(cfg.Run.Order)
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	resultsObserver, err := taskqprom.NewResultObserver[time.Duration]("taskq", reg)
	if err != nil {
		return err
	}

	poolOpts := []pool.Option{
		pool.WithMinIdle(cfg.Pool.MinIdle),
		pool.WithLowWaterMark(cfg.Pool.LowWater),
		pool.WithReplenishCount(cfg.Pool.Replenish),
		pool.WithMaxWorkers(cfg.Pool.MaxWorkers),
		pool.WithNamePrefix(cfg.Pool.NamePrefix),
		pool.WithRateLimit(cfg.Pool.RateLimit, cfg.Pool.RateBurst),
		pool.WithCPUAffinity(cfg.Pool.CPUAffinity),
		pool.WithLogger(log),
	}
	if cfg.Run.Metrics {
		m, err := taskqprom.NewMetrics("taskq", reg, taskqprom.Options{})
		if err != nil {
			return err
		}
		poolOpts = append(poolOpts, pool.WithMetrics(m))
	}

	p, err := pool.New(poolOpts...)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer func() {
		if err := p.Close(poolCloseTimeout); err != nil {
			log.Warn("pool did not shut down cleanly", "error", err)
		}
	}()

	c, err := newSleepCollection(ctx, p, cfg, log)
	if err != nil {
		return err
	}

	log.Info("starting run",
		"tasks", c.Len(),
		"order", order.String(),
		"timeout", cfg.Run.Timeout,
		"cancel_after", cfg.Run.CancelAfter,
	)

	bar := progressbar.NewOptions(c.Len(),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Running tasks..."),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
	)

	var results []sleepResult
	collect := queue.ObserverFunc[sleepResult](func(event queue.Event, res sleepResult) error {
		if event != queue.EventAdded {
			return nil
		}
		results = append(results, res)
		return bar.Add(1)
	})

	start := time.Now()
	done, err := c.ExecuteLaterNotify(ctx,
		[]queue.Observer[sleepResult]{collect, resultsObserver},
		queue.IgnoreErrors,
		order,
	)
	if err != nil {
		return fmt.Errorf("failed to start collection: %w", err)
	}
	<-done
	elapsed := time.Since(start)
	_ = bar.Finish()
	fmt.Fprintln(out)

	if err := ctx.Err(); err != nil && len(results) < c.Len() {
		log.Warn("run interrupted", "delivered", len(results), "error", err)
	}

	printResults(out, results)
	printSummary(out, runID, order, results, elapsed)

	if cfg.Run.Metrics {
		families, err := reg.Gather()
		if err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
		printMetrics(out, families)
	}
	return nil
}

// newSleepCollection builds the collection flavour selected by cfg and adds
// cfg.Run.Tasks sleeping tasks to it. A timeout takes precedence over
// cancel-after. A cancellable collection is also cancelled when ctx ends.
func newSleepCollection(ctx context.Context, p *pool.WorkerPool, cfg *config.Config, log *slog.Logger) (*task.Collection[int, time.Duration], error) {
	var (
		c   *task.Collection[int, time.Duration]
		err error
	)
	switch {
	case cfg.Run.Timeout > 0:
		c, err = task.NewTimedCollection[int, time.Duration](p, cfg.Run.Timeout, task.WithLogger(log))
	case cfg.Run.CancelAfter > 0:
		var token *task.Cancellation
		token, err = task.NewCancellationWithInterval(cfg.Run.PollingInterval)
		if err != nil {
			return nil, err
		}
		c, err = task.NewCancellableCollection[int, time.Duration](p, token, task.WithLogger(log))
		if err == nil {
			time.AfterFunc(cfg.Run.CancelAfter, func() {
				token.CancelBy(fmt.Sprintf("cancel-after %s elapsed", cfg.Run.CancelAfter), "taskq run")
			})
			context.AfterFunc(ctx, func() {
				token.CancelBy("interrupted", "taskq run")
			})
		}
	default:
		c, err = task.NewCollection[int, time.Duration](p, task.WithLogger(log))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	for i := range cfg.Run.Tasks {
		d := randomSleep(cfg.Run.MaxSleep)
		fail := cfg.Run.FailEvery > 0 && (i+1)%cfg.Run.FailEvery == 0
		if _, err := c.Add(sleepTask(d, fail), i); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func randomSleep(maxSleep time.Duration) time.Duration {
	if maxSleep <= 0 {
		return 0
	}
	return rand.N(maxSleep + 1)
}

// sleepTask sleeps for d unless ctx ends first. It returns the time slept.
func sleepTask(d time.Duration, fail bool) task.Func[int, time.Duration] {
	return func(ctx context.Context, index int) (time.Duration, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		if fail {
			return d, fmt.Errorf("task #%d failed after %s", index, d)
		}
		return d, nil
	}
}

func printResults(out io.Writer, results []sleepResult) {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Task", "Status", "Detail")
	for i, res := range results {
		_ = table.Append(
			fmt.Sprintf("%d", i+1),
			res.TaskID().String(),
			taskqprom.Status(res.Err()),
			resultDetail(res),
		)
	}
	_ = table.Render()
}

func resultDetail(res sleepResult) string {
	v, err := res.Value()
	if err == nil {
		return fmt.Sprintf("slept %s", v)
	}

	var resErr *task.ResultError
	if errors.As(err, &resErr) {
		err = resErr.Cause
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}

func printSummary(out io.Writer, runID uuid.UUID, order task.Order, results []sleepResult, elapsed time.Duration) {
	counts := make(map[string]int)
	for _, res := range results {
		counts[taskqprom.Status(res.Err())]++
	}

	fmt.Fprintln(out)
	bold.Fprintf(out, "Run %s (%s, %d results in %s)\n", runID, order, len(results), elapsed.Round(time.Millisecond))
	green.Fprintf(out, "  ok:        %d\n", counts["ok"])
	red.Fprintf(out, "  failed:    %d\n", counts["failed"])
	yellow.Fprintf(out, "  cancelled: %d\n", counts["cancelled"])
	yellow.Fprintf(out, "  timed out: %d\n", counts["timed_out"])
}

func printMetrics(out io.Writer, families []*dto.MetricFamily) {
	fmt.Fprintln(out)
	bold.Fprintln(out, "Metrics")

	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Labels", "Value")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			_ = table.Append(mf.GetName(), formatLabels(m.GetLabel()), formatValue(mf.GetType(), m))
		}
	}
	_ = table.Render()
}

func formatLabels(pairs []*dto.LabelPair) string {
	labels := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		labels = append(labels, lp.GetName()+"="+lp.GetValue())
	}
	slices.Sort(labels)
	return strings.Join(labels, ",")
}

func formatValue(kind dto.MetricType, m *dto.Metric) string {
	switch kind {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
	default:
		return "-"
	}
}
