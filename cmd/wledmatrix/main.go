package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/wledmatrix/internal/app"
	"github.com/coreman2200/wledmatrix/internal/config"
	"github.com/coreman2200/wledmatrix/internal/ddp"
	"github.com/coreman2200/wledmatrix/internal/framebuffer"
	"github.com/coreman2200/wledmatrix/internal/layout"
	"github.com/coreman2200/wledmatrix/internal/led"
	"github.com/coreman2200/wledmatrix/internal/output"
	"github.com/coreman2200/wledmatrix/internal/pattern"
	"github.com/coreman2200/wledmatrix/internal/preview"
	"github.com/coreman2200/wledmatrix/internal/wled"
)

var defaultConfigs = []string{"config.local.yaml", "config.local.toml", "config.yaml", "config.toml"}

func main() {
	// ---- Flags (explicitly set flags win over the config file) ----
	var (
		configPath = flag.String("config", "", "config file (.yaml or .toml); default: first of "+strings.Join(defaultConfigs, ", "))
		ip         = flag.String("ip", "", "WLED controller address")
		protocol   = flag.String("protocol", "json", "output protocol: json | ddp")
		layoutKind = flag.String("layout", "serpentine", "wiring: linear | serpentine")
		width      = flag.Int("width", 32, "matrix width")
		height     = flag.Int("height", 8, "matrix height")
		fps        = flag.Int("fps", 30, "target frames per second")
		pat        = flag.String("pattern", "rainbow", "pattern: index_sweep | row_sweep | rgb_channels | checkerboard | rainbow")
		patBright  = flag.Float64("pattern-brightness", 0.6, "rainbow value 0..1")
		mirror     = flag.String("mirror", "none", "local mirror: none | sim | console | spi")
		addr       = flag.String("addr", ":8080", "preview HTTP listen address")
		debug      = flag.Bool("debug", false, "log every flush")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Config ----
	cfg, used, err := loadConfig(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("config load failed; proceeding with flags")
		d := config.Defaults()
		cfg = &d
	} else {
		log.Info().Str("path", used).Msg("config loaded")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.WLED.IP = *ip
		case "protocol":
			cfg.Output.Protocol = *protocol
		case "layout":
			cfg.Matrix.Layout = *layoutKind
		case "width":
			cfg.Matrix.Width = *width
		case "height":
			cfg.Matrix.Height = *height
		case "fps":
			cfg.FPS = *fps
		case "pattern":
			cfg.Pattern = *pat
		case "mirror":
			cfg.Mirror = *mirror
		case "addr":
			cfg.Addr = *addr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// ---- Grid ----
	mapper, err := layout.New(cfg.Matrix.Layout, cfg.Matrix.Width, cfg.Matrix.Height)
	if err != nil {
		log.Fatal().Err(err).Msg("layout")
	}
	fb, err := framebuffer.New(cfg.Matrix.Width, cfg.Matrix.Height)
	if err != nil {
		log.Fatal().Err(err).Msg("framebuffer")
	}
	count := cfg.Matrix.Width * cfg.Matrix.Height

	// ---- Transports ----
	mode, err := output.ParseMode(cfg.Output.Protocol)
	if err != nil {
		log.Fatal().Err(err).Msg("output")
	}
	timeout := time.Duration(cfg.WLED.TimeoutMs) * time.Millisecond
	httpc := wled.New(cfg.WLED.IP, cfg.WLED.Port, timeout)
	tr := output.Transports{HTTP: httpc}
	if mode == output.ModeDDP {
		enc, err := ddp.NewEncoder(byte(cfg.Output.DDPDestinationID), cfg.Output.MaxPayload)
		if err != nil {
			log.Fatal().Err(err).Msg("ddp encoder")
		}
		udp, err := ddp.Dial(cfg.WLED.IP, cfg.Output.DDPPort, timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("ddp dial")
		}
		defer udp.Close()
		log.Info().Str("addr", udp.Addr()).Int("max_payload", enc.MaxPayload()).Int("destination", cfg.Output.DDPDestinationID).Msg("ddp output")
		tr.UDP, tr.Encoder = udp, enc
	}

	disp, err := output.New(fb, mapper, output.Options{
		Mode:            mode,
		SparseThreshold: cfg.Output.SparseThreshold,
		ResyncEvery:     cfg.Output.ResyncEvery,
	}, tr)
	if err != nil {
		log.Fatal().Err(err).Msg("display")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Controller probe is informational; a dark controller still gets frames
	// once it comes back.
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	if info, err := httpc.Info(probeCtx); err != nil {
		log.Warn().Err(err).Str("wled", httpc.BaseURL).Msg("controller not reachable")
	} else {
		log.Info().Str("name", info.Name).Str("version", info.Ver).Int("leds", info.Leds.Count).Msg("controller")
		if info.Leds.Count > 0 && info.Leds.Count < count {
			log.Warn().Int("leds", info.Leds.Count).Int("matrix", count).Msg("controller has fewer LEDs than the matrix")
		}
		if cfg.Brightness > 0 {
			if err := httpc.SetBrightness(probeCtx, cfg.Brightness); err != nil {
				log.Warn().Err(err).Msg("set brightness")
			}
		}
	}
	cancel()

	// ---- Mirrors ----
	hub := preview.NewHub(cfg.Matrix.Width, cfg.Matrix.Height)
	hub.Mode = string(disp.Mode())
	hub.Stats = disp.Last
	disp.AddMirror(hub)

	var drv led.Driver
	switch cfg.Mirror {
	case "", "none":
	case "sim":
		drv = led.NewSim()
	case "console":
		drv = led.NewConsole(count)
	case "spi":
		s, err := led.NewSPI(cfg.SPIPort, count)
		if err != nil {
			log.Warn().Err(err).Str("mirror", "spi").Str("port", cfg.SPIPort).Msg("SPI init failed; falling back to SIM")
			drv = led.NewSim()
		} else {
			drv = s
		}
	default:
		log.Warn().Str("mirror", cfg.Mirror).Msg("unknown mirror; using SIM")
		drv = led.NewSim()
	}
	if drv != nil {
		disp.AddMirror(drv)
		defer drv.Close()
	}

	// ---- Initial frame ----
	if _, err := disp.Clear(ctx, framebuffer.Black); err != nil {
		log.Warn().Err(err).Msg("initial clear failed; will retry on next flush")
	}

	// ---- Pattern ----
	var runner *pattern.Runner
	if cfg.Pattern != "" && cfg.Pattern != "none" {
		kind, err := pattern.ParseKind(cfg.Pattern)
		if err != nil {
			log.Fatal().Err(err).Msg("pattern")
		}
		runner = pattern.NewRunner(pattern.Plan{Kind: kind, Brightness: *patBright})
	}
	cond := app.NewConductor(disp, runner, hub)

	// ---- HTTP ----
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(hub.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("protocol", string(mode)).Str("wled", cfg.WLED.IP).Msg("preview server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	if err := cond.Run(ctx, cfg.FPS); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("conductor stopped")
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if _, err := disp.Clear(shutdownCtx, framebuffer.Black); err != nil {
		log.Warn().Err(err).Msg("final clear failed")
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		c, err := config.Load(path)
		return c, path, err
	}
	return config.LoadFirst(defaultConfigs...)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
