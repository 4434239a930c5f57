// Команда loadtest гоняет сценарии заказов воды через gRPC API и печатает
// сводку по задержкам и ошибкам.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	grpcsvc "github.com/vladislavdragonenkov/watermate/internal/service/grpc"
)

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateDeliver loadMode = "create-deliver"
	modeCreateCancel  loadMode = "create-cancel"
	modeCreateTrack   loadMode = "create-track"
)

var loadModes = []loadMode{modeCreate, modeCreateDeliver, modeCreateCancel, modeCreateTrack}

var paymentMethods = []string{"mpesa", "cash_on_delivery"}

type config struct {
	addr        string
	connections int
	concurrency int
	timeout     time.Duration

	// total ограничивает число сценариев; при заданном duration действует,
	// только если передан явно (totalSet).
	total    int
	totalSet bool
	duration time.Duration

	mode          loadMode
	cancelRate    int
	clientID      string
	shopID        string
	litres        int
	paymentMethod string

	phone string
	otp   string

	reportPath   string
	textfilePath string
}

func parseConfig(args []string, output io.Writer) (config, error) {
	cfg := config{}
	var mode string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC address of watermate")
	fs.IntVar(&cfg.connections, "connections", 10, "gRPC client connections")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "concurrent scenario workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-call timeout")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration a cap only when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "run for a fixed time instead of a fixed count")
	fs.StringVar(&mode, "mode", string(modeCreate), "scenario: create | create-deliver | create-cancel | create-track")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 100, "percent of create-cancel scenarios that cancel the order")
	fs.StringVar(&cfg.clientID, "client-id", "client-1", "client placing orders")
	fs.StringVar(&cfg.shopID, "shop-id", "shop-1", "shop receiving orders")
	fs.IntVar(&cfg.litres, "litres", 20, "litres per order")
	fs.StringVar(&cfg.paymentMethod, "payment-method", "mpesa", "mpesa | cash_on_delivery")
	fs.StringVar(&cfg.phone, "phone", "", "sign in with this phone before the run; empty skips sign-in")
	fs.StringVar(&cfg.otp, "otp", "1234", "OTP used with -phone")
	fs.StringVar(&cfg.reportPath, "output", "", "write the JSON report to this file")
	fs.StringVar(&cfg.textfilePath, "textfile", "", "write prometheus metrics for the textfile collector to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.totalSet = cfg.totalSet || f.Name == "total" })

	cfg.mode = loadMode(strings.TrimSpace(mode))
	cfg.clientID = strings.TrimSpace(cfg.clientID)
	cfg.shopID = strings.TrimSpace(cfg.shopID)
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case !slices.Contains(loadModes, c.mode):
		return fmt.Errorf("unsupported mode: %s", c.mode)
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.total <= 0 && (c.duration == 0 || c.totalSet):
		return errors.New("total must be > 0")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.connections <= 0:
		return errors.New("connections must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case c.litres <= 0:
		return errors.New("litres must be > 0")
	case c.cancelRate < 0 || c.cancelRate > 100:
		return errors.New("cancel-rate must be between 0 and 100")
	case c.clientID == "":
		return errors.New("client-id is required")
	case c.shopID == "":
		return errors.New("shop-id is required")
	case !slices.Contains(paymentMethods, c.paymentMethod):
		return fmt.Errorf("unsupported payment method: %s", c.paymentMethod)
	}
	return nil
}

func runTarget(c config) string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count=%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration=%s max=%d", c.duration, c.total)
	}
	return fmt.Sprintf("duration=%s", c.duration)
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		exit("invalid config: %v", err)
	}

	clients := make([]caller, 0, cfg.connections)
	for range cfg.connections {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			exit("create grpc client: %v", err)
		}
		defer conn.Close()
		clients = append(clients, grpcsvc.NewMarketplaceClient(conn))
	}

	rec := newRecorder()
	result, err := run(context.Background(), cfg, clients, rec)
	if err != nil {
		exit("load test failed: %v", err)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.reportPath != "" {
		if err := writeJSONReport(cfg.reportPath, result); err != nil {
			exit("write report: %v", err)
		}
	}
	if cfg.textfilePath != "" {
		if err := rec.writeTextfile(cfg.textfilePath); err != nil {
			exit("write textfile: %v", err)
		}
	}
	if result.Scenarios.Failed() > 0 {
		os.Exit(1)
	}
}

func exit(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// run раздаёт сценарии воркерам; клиенты распределяются между воркерами по кругу.
func run(ctx context.Context, cfg config, clients []caller, rec *recorder) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("at least one client is required")
	}

	if cfg.phone != "" {
		token, err := signIn(ctx, clients[0], cfg, rec)
		if err != nil {
			return report{}, fmt.Errorf("sign in: %w", err)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, authorizationHeader, "Bearer "+token)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := range cfg.concurrency {
		cli := clients[w%len(clients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(ctx, cli, cfg, index, runID, rec)
			}
		}()
	}
	dispatchJobs(jobs, cfg)
	wg.Wait()

	return rec.summarize(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	capped := cfg.duration <= 0 || cfg.totalSet

	for i := 0; !capped || i < cfg.total; i++ {
		select {
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}
