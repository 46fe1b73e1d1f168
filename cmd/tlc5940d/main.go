package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/tlc5940/internal/config"
	"github.com/coreman2200/tlc5940/internal/hw"
	"github.com/coreman2200/tlc5940/internal/ledclass"
	"github.com/coreman2200/tlc5940/internal/mirror"
	"github.com/coreman2200/tlc5940/internal/tlc5940"
	"github.com/coreman2200/tlc5940/internal/ws"
)

func main() {
	// ---- Flags (used when there is no config file; the file wins) ----
	var (
		configPath = flag.String("config", "tlc5940.yaml", "path to YAML config")
		writeCfg   = flag.Bool("write-config", false, "write the effective config to -config and exit")
		driver     = flag.String("driver", "sim", "driver: hw | sim")
		channels   = flag.Int("channels", tlc5940.DefaultChannels, "channel count (16 per chip)")
		gsclk      = flag.String("gsclk", "2.5MHz", "grayscale clock frequency")
		spiDev     = flag.String("spi", "", "SPI port name, empty for the first")
		blankPin   = flag.String("blank-pin", "GPIO25", "BLANK pin (periph name)")
		gsclkPin   = flag.String("gsclk-pin", "GPIO18", "GSCLK PWM pin (periph name)")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		level      = flag.String("log-level", "info", "log level")
		preview    = flag.Bool("preview", false, "sim: draw frames on the console")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		c := config.Default()
		c.Driver = *driver
		c.Preview = *preview
		c.Device.Channels = *channels
		c.Device.GSCLK = *gsclk
		c.SPI.Dev = *spiDev
		c.Blank.Pin = *blankPin
		c.GSCLK.Pin = *gsclkPin
		c.HTTP.Addr = *addr
		c.Log.Level = *level
		cfg = &c
	}
	if *simOnly {
		cfg.Driver = "sim"
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	config.Normalize(cfg)

	if *writeCfg {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("write config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	if !cfg.Log.Console {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Hardware and device ----
	hardware, sim, err := hw.Open(cfg, log.With().Str("component", "hw").Logger())
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Driver).Msg("hardware open failed")
		return 1
	}
	if sim != nil {
		log.Info().Bool("preview", cfg.Preview).Msg("using simulated hardware")
	}

	dcfg, err := cfg.DeviceConfig()
	if err != nil {
		log.Error().Err(err).Msg("device config")
		_ = hardware.Close()
		return 1
	}
	leds := ledclass.New()
	dev, err := tlc5940.New(ctx, dcfg, hardware, leds,
		tlc5940.WithLogger(log.With().Str("component", "tlc5940").Logger()))
	if err != nil {
		log.Error().Err(err).Msg("device init failed")
		_ = hardware.Close()
		return 1
	}
	log.Info().
		Int("channels", dev.Len()).
		Str("gsclk", dcfg.Timing.GSCLK.String()).
		Dur("blank_period", dcfg.Timing.BlankPeriod()).
		Dur("start_delay", dcfg.StartDelay).
		Msg("tlc5940 up")

	// ---- Control surface ----
	state := ws.NewState(dev, leds, cfg.Patterns.Step(), log.With().Str("component", "ws").Logger())
	state.Driver = cfg.Driver
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      withCORS(state.Routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		select {
		case <-dev.Done():
			// nil once the context ended; the blank line error otherwise.
			return dev.Err()
		case <-gctx.Done():
			return nil
		}
	})

	// ---- Optional status mirror ----
	if cfg.Mirror.Enabled() {
		client, err := mirror.DialTCP(cfg.Mirror.Endpoint, cfg.Mirror.Timeout())
		if err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.Mirror.Endpoint).Msg("status mirror disabled")
		} else {
			m, err := mirror.New(mirror.Config{
				UnitID:   cfg.Mirror.UnitID,
				Address:  cfg.Mirror.Address,
				Interval: cfg.Mirror.Interval(),
			}, client, dev, log.With().Str("component", "mirror").Logger())
			if err != nil {
				_ = client.Close()
				log.Warn().Err(err).Msg("status mirror disabled")
			} else {
				g.Go(func() error { return m.Run(gctx) })
			}
		}
	}

	err = g.Wait()
	code := 0
	if err != nil {
		log.Error().Err(err).Msg("stopped on error")
		code = 1
	} else {
		log.Info().Msg("shutting down")
	}

	st := dev.Stats()
	log.Info().
		Uint64("ticks", st.Ticks).
		Uint64("transmits", st.Transmits).
		Uint64("transport_failures", st.TransportFailures).
		Uint64("overruns", st.Overruns).
		Msg("final stats")
	if err := dev.Close(); err != nil {
		log.Warn().Err(err).Msg("device close")
	}
	return code
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
