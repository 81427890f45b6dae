package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/dice/internal/api"
	"github.com/banshee-data/dice/internal/config"
	"github.com/banshee-data/dice/internal/db"
	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/host"
	"github.com/banshee-data/dice/internal/inference"
	"github.com/banshee-data/dice/internal/model"
	"github.com/banshee-data/dice/internal/pipeline"
	"github.com/banshee-data/dice/internal/rpc"
	"github.com/banshee-data/dice/internal/serialmux"
	"github.com/banshee-data/dice/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	devMode    = flag.Bool("dev", false, "Run in dev mode: host lines on stdin/stdout, echo model when none is built in")
	listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen = flag.String("grpc-listen", "", "gRPC listen address, \"off\" to disable (overrides config)")
	port       = flag.String("port", "", "Serial port for the host link (overrides config; ignored in dev mode)")
	modelPath  = flag.String("model", "", "Model bundle to load instead of the embedded artifact (overrides config)")
	dbPath     = flag.String("db", "", "SQLite database path, \"off\" to disable (overrides config)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

const (
	disabled        = "off"
	shutdownTimeout = 2 * time.Second
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Println(version.Current())
		return
	}
	if flag.NArg() > 0 {
		if err := runClient(context.Background(), flag.Args(), os.Stdin, os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage:\n  dice [flags]                 run the server\n  dice [flags] <command> ...   call a running server\n\n")
	fmt.Fprintf(out, "Commands:\n%s\nFlags:\n", clientUsage)
	flag.PrintDefaults()
}

// loadConfig reads path, or returns an empty config whose getters yield the
// built-in defaults when path is empty.
func loadConfig(path string) (*config.DiceConfig, error) {
	if path == "" {
		return config.EmptyConfig(), nil
	}
	return config.LoadConfig(path)
}

// applyFlagOverrides copies every non-empty command-line value into cfg.
func applyFlagOverrides(cfg *config.DiceConfig) {
	override := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	override(&cfg.Listen, *listen)
	override(&cfg.GRPCListen, *grpcListen)
	override(&cfg.SerialPort, *port)
	override(&cfg.ModelPath, *modelPath)
	override(&cfg.DBPath, *dbPath)
}

func serialOptions(cfg *config.DiceConfig) serialmux.PortOptions {
	return serialmux.PortOptions{
		BaudRate: cfg.GetSerialBaudRate(),
		DataBits: cfg.GetSerialDataBits(),
		StopBits: cfg.GetSerialStopBits(),
		Parity:   cfg.GetSerialParity(),
	}
}

// openSerial picks the host link: stdin/stdout in dev mode, the configured
// port, or a disabled mux when no port is set.
func openSerial(cfg *config.DiceConfig, dev bool) (serialmux.SerialMuxInterface, error) {
	switch {
	case dev:
		log.Printf("[Serial] dev mode: reading host lines from stdin")
		return serialmux.NewStdioSerialMux(os.Stdin, os.Stdout), nil
	case cfg.GetSerialPort() == "":
		log.Printf("[Serial] no serial port configured; host link disabled")
		return serialmux.NewDisabledSerialMux(), nil
	default:
		opts := serialOptions(cfg)
		mux, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
		log.Printf("[Serial] opened %s (%s)", cfg.GetSerialPort(), opts)
		return mux, nil
	}
}

// newEngine builds and loads the inference engine. A load failure is logged,
// not returned: the engine stays uninitialized and requests fail with
// ErrNotInitialized until the process is restarted with a usable model.
func newEngine(ctx context.Context, cfg *config.DiceConfig, dev bool) (*inference.Engine, model.Artifact, error) {
	art, err := model.Load(cfg.GetModelPath())
	if err != nil {
		return nil, art, err
	}

	var rt inference.Runtime
	if dev && art.Placeholder {
		log.Printf("[Model] dev mode: no model built in, using the echo runtime")
		rt = &inference.EchoRuntime{InputName: cfg.GetInputName(), OutputName: cfg.GetOutputName()}
	} else {
		rt = &inference.LoomRuntime{
			ModelID:    cfg.GetModelID(),
			InputName:  cfg.GetInputName(),
			OutputName: cfg.GetOutputName(),
		}
	}

	e := inference.NewEngine(rt, art.Payload,
		inference.WithTensorNames(cfg.GetInputName(), cfg.GetOutputName()),
		inference.WithTimeout(cfg.GetRunTimeout()),
	)
	if err := e.Load(ctx); err != nil {
		if art.Placeholder {
			log.Printf("[Model] WARNING: %s is a placeholder, not a model. Build with `make model MODEL=path` or pass --model. Every transform will fail.", art.Source)
		}
		log.Printf("[Model] failed to load %s: %v", art.Source, err)
	} else {
		log.Printf("[Model] loaded %s", art.Source)
	}
	return e, art, nil
}

// openStore opens the database and restores saved parameters into store.
// Parameter changes are saved back as they happen.
func openStore(ctx context.Context, cfg *config.DiceConfig, store *pipeline.ParamStore) (*db.DB, error) {
	path := cfg.GetDBPath()
	if path == "" || path == disabled {
		log.Printf("[DB] persistence disabled")
		return nil, nil
	}
	database, err := db.NewDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	database.HistoryLimit = cfg.GetHistoryLimit()

	saved, ok, err := database.LoadParams(ctx)
	switch {
	case err != nil:
		log.Printf("[DB] failed to load saved parameters: %v", err)
	case ok:
		if err := store.Restore(saved); err != nil {
			log.Printf("[DB] ignoring saved parameters: %v", err)
		} else {
			log.Printf("[DB] restored parameters %+v", saved)
		}
	}

	store.OnChange(func(p pipeline.Params) {
		if err := database.SaveParams(context.Background(), p); err != nil {
			log.Printf("[DB] failed to save parameters: %v", err)
		}
	})
	return database, nil
}

func run(cfg *config.DiceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting %s", version.Current())

	engine, art, err := newEngine(ctx, cfg, *devMode)
	if err != nil {
		return err
	}

	store := pipeline.NewParamStore(pipeline.Params{
		Threshold:  cfg.GetThreshold(),
		NoiseLevel: cfg.GetNoiseLevel(),
		Seed:       cfg.GetSeed(),
	})
	database, err := openStore(ctx, cfg, store)
	if err != nil {
		return err
	}
	var popts []pipeline.Option
	if database != nil {
		defer database.Close()
		popts = append(popts, pipeline.WithRecorder(database))
	}

	dims := grid.Dims{Rows: cfg.GetRows(), Cols: cfg.GetCols()}
	p, err := pipeline.New(dims, engine, store, popts...)
	if err != nil {
		return err
	}

	hostSerial, err := openSerial(cfg, *devMode)
	if err != nil {
		return err
	}
	defer hostSerial.Close()

	// subscribe the shell before the monitor reads anything
	shell := host.NewShell(hostSerial, p)

	var wg sync.WaitGroup

	// serial IO
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hostSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Serial] monitor stopped: %v", err)
		}
		log.Print("[Serial] monitor routine terminated")
	}()

	// host command shell
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Host] shell stopped: %v", err)
		}
		log.Print("[Host] shell routine terminated")
	}()

	// gRPC
	if addr := cfg.GetGRPCListen(); addr != "" && addr != disabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rpc.ListenAndServe(ctx, addr, rpc.NewService(p)); err != nil {
				log.Printf("[RPC] server error: %v", err)
			}
		}()
	}

	// HTTP
	wg.Add(1)
	go func() {
		defer wg.Done()

		opts := []api.Option{api.WithModelInfo(api.ModelInfo{Source: art.Source, Placeholder: art.Placeholder})}
		if database != nil {
			opts = append(opts, api.WithHistory(database))
		}
		apiServer := api.NewServer(p, engine, opts...)
		mux := apiServer.ServeMux()
		apiServer.AttachAdminRoutes(mux)
		hostSerial.AttachAdminRoutes(mux)
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("[HTTP] listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[HTTP] server error: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	return nil
}
