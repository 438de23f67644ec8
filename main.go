package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/thelolagemann/gomeboy-web/internal/config"
	"github.com/thelolagemann/gomeboy-web/internal/frontend"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
	"github.com/thelolagemann/gomeboy-web/internal/scheduler"
	"github.com/thelolagemann/gomeboy-web/pkg/display"
	_ "github.com/thelolagemann/gomeboy-web/pkg/display/fyne"
	_ "github.com/thelolagemann/gomeboy-web/pkg/display/web"
	"github.com/thelolagemann/gomeboy-web/pkg/engine/headless"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

func main() {
	if len(display.InstalledDrivers) == 0 {
		log.New().Fatal("No display drivers installed. Please compile with at least one display driver")
	}

	configFile := flag.String("config", "", "The TOML config file to load")
	displayDriver := flag.String("driver", "auto", "The display driver to use. Can be auto, "+strings.Join(display.Names(), " or "))
	refresh := flag.String("refresh", config.RefreshTicker, "What paces the frame loop. Can be ticker or client")
	rate := flag.Float64("rate", 0, "The ticker rate in Hz (0 selects the Game Boy frame rate)")
	romFile := flag.String("rom", "", "The rom file to load once the emulator is ready")
	pick := flag.Bool("pick", false, "Pick the rom file to load with a native file dialog")
	frames := flag.Uint64("frames", 0, "Stop each frame loop after this many frames (0 runs forever)")
	logLevel := flag.String("log-level", "info", "The log level. Can be trace, debug, info, warn or error")
	pprofAddr := flag.String("pprof", "", "Serve pprof on this address, e.g. localhost:6060")

	if err := display.RegisterFlags(flag.CommandLine); err != nil {
		log.New().Fatal(err.Error())
	}
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.New().Fatal(err.Error())
	}

	// flags given on the command line override the config file
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
		switch f.Name {
		case "driver":
			cfg.Driver = *displayDriver
		case "refresh":
			cfg.Refresh = strings.ToLower(*refresh)
		case "rate":
			cfg.Rate = *rate
		case "rom":
			cfg.ROM = *romFile
		case "frames":
			cfg.Frames = *frames
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevel)
		}
	})
	if err := cfg.Validate(); err != nil {
		log.New().Fatal(err.Error())
	}
	if cfg.Addr != "" && !set["web-addr"] {
		flag.Set("web-addr", cfg.Addr)
	}
	if cfg.ROMCache > 0 && !set["web-cache"] {
		flag.Set("web-cache", strconv.Itoa(cfg.ROMCache))
	}

	logger, err := log.NewWithLevel(os.Stderr, cfg.LogLevel)
	if err != nil {
		log.New().Fatal(err.Error())
	}

	if *pprofAddr != "" {
		go func() {
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				logger.Errorf("pprof: %v", err)
			}
		}()
	}

	driver := display.GetDriver(cfg.Driver)
	// check to make sure the driver is valid
	if driver == nil {
		logger.Fatal(fmt.Sprintf("invalid display driver %q", cfg.Driver))
	}

	var pacing scheduler.Refresh
	if cfg.Refresh == config.RefreshClient {
		pacing = scheduler.NewPulse()
	} else {
		pacing = scheduler.NewTicker(cfg.Rate)
	}

	app := frontend.New(frontend.Options{
		Factory:      headless.Factory(headless.WithLogger(logger)),
		Refresh:      pacing,
		FrameLimit:   cfg.Frames,
		MaxImageSize: cfg.MaxROMSize,
		Logger:       logger,
	})
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Ready(ctx)
	if cfg.ROM != "" || *pick {
		go loadInitial(ctx, app, logger, cfg.ROM, *pick)
	}

	// attach the front end to the driver
	driver.Initialize(app, logger)
	if err := driver.Start(ctx); err != nil {
		logger.Fatal(err.Error())
	}
}

// loadInitial selects the rom given on the command line, or asks
// for one, once the emulator is ready.
func loadInitial(ctx context.Context, app *frontend.App, logger log.Logger, path string, pick bool) {
	if err := app.Wait(ctx); err != nil {
		logger.Errorf("initial selection: %v", err)
		return
	}

	var files []loader.File
	switch {
	case path != "":
		files = append(files, loader.FromPath(path))
	case pick:
		name, err := askForROM()
		if err != nil && !errors.Is(err, errCancelled) {
			logger.Errorf("pick rom: %v", err)
			return
		}
		if name != "" {
			files = append(files, loader.FromPath(name))
		}
	}

	if err := app.Select(ctx, files...); err != nil {
		logger.Errorf("%v", err)
	}
}
