package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/convert"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/gpu/opengl"
	"github.com/ayusman/mudra/internal/gpu/soft"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

type options struct {
	addr       string
	dbPath     string
	backend    string
	cameraID   int
	input      string
	colorRange string
	target     string
	swapChroma bool
	detector   string
	tray       bool
	start      bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite database path (default ~/.mudra/mudra.db)")
	flag.StringVar(&opts.backend, "backend", "opengl", "GPU backend: opengl, soft")
	flag.IntVar(&opts.cameraID, "camera", 0, "Camera device id")
	flag.StringVar(&opts.input, "input", "", "Input mode override: yuv, texture")
	flag.StringVar(&opts.colorRange, "color-range", "", "YUV range override: limited, full")
	flag.StringVar(&opts.target, "target", "640x480", "Texture conversion target size")
	flag.BoolVar(&opts.swapChroma, "swap-chroma", false, "Treat the second chroma plane as U")
	flag.StringVar(&opts.detector, "detector", "mediapipe", "Hand detector: mediapipe, mock")
	flag.BoolVar(&opts.tray, "tray", false, "Show the system tray indicator")
	flag.BoolVar(&opts.start, "start", true, "Start the pipeline at launch")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", opts.logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("mudra failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	dbPath := opts.dbPath
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		dbDir := filepath.Join(homeDir, ".mudra")
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "mudra.db")
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	settings, err := loadSettings(st, opts, logger)
	if err != nil {
		return err
	}

	backend, err := chooseBackend(opts.backend)
	if err != nil {
		return err
	}
	newDetector, err := detectorFactory(opts.detector)
	if err != nil {
		return err
	}

	application, err := app.New(app.Config{
		Backend:  backend,
		Settings: settings,
		Store:    st,
		OpenYUV: func(s config.Settings) (capture.YUVSession, error) {
			cam, err := openCamera(opts.cameraID, s.Resolution, logger)
			if err != nil {
				return nil, err
			}
			return capture.NewCameraYUVSession(cam), nil
		},
		OpenTexture: func(s config.Settings) (capture.TextureSession, error) {
			cam, err := openCamera(opts.cameraID, s.Resolution, logger)
			if err != nil {
				return nil, err
			}
			return capture.NewCameraTextureSession(cam), nil
		},
		NewDetector: newDetector,
		SwapChroma:  opts.swapChroma,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer application.Close()

	webDir := findWebDir()
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Pipeline:  application,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(opts.addr) }()

	if opts.start {
		if err := application.Start(); err != nil {
			logger.Error("start pipeline", "err", err)
		}
	}

	if opts.tray {
		runTray(ctx, stop, application, opts.addr, logger)
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadSettings reads the stored settings and applies flag overrides. A
// stored value that no longer validates falls back to the defaults.
func loadSettings(st *store.Store, opts options, logger *slog.Logger) (config.Settings, error) {
	settings, err := st.Settings().Load()
	if err != nil {
		logger.Warn("stored settings rejected, using defaults", "err", err)
		settings = config.Default()
	}

	if opts.input != "" {
		m, err := config.ParseInputMode(opts.input)
		if err != nil {
			return config.Settings{}, err
		}
		settings.Input = m
	}
	if opts.colorRange != "" {
		r, err := convert.ParseColorRange(opts.colorRange)
		if err != nil {
			return config.Settings{}, err
		}
		settings.ColorRange = r
	}
	target, err := parseSize(opts.target)
	if err != nil {
		return config.Settings{}, fmt.Errorf("-target: %w", err)
	}
	settings.Target = target

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func parseSize(s string) (capture.Size, error) {
	var size capture.Size
	if _, err := fmt.Sscanf(strings.ToLower(s), "%dx%d", &size.Width, &size.Height); err != nil {
		return capture.Size{}, fmt.Errorf("size %q: want WIDTHxHEIGHT", s)
	}
	return size, nil
}

func chooseBackend(name string) (gpu.Backend, error) {
	switch name {
	case "opengl", "gl":
		return opengl.Backend{}, nil
	case "soft":
		return soft.Backend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func detectorFactory(name string) (func(detector.Config) (detector.Detector, error), error) {
	switch name {
	case "mediapipe":
		return func(cfg detector.Config) (detector.Detector, error) {
			d, err := detector.NewMediaPipeDetector(cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	case "mock":
		return func(detector.Config) (detector.Detector, error) {
			return detector.NewMockDetector(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown detector %q", name)
	}
}

// openCamera probes the device for the capture size: the saved one if
// offered, else the largest 4:3 size, else the largest. The camera is left
// closed; the session opens it.
func openCamera(id int, saved capture.Size, logger *slog.Logger) (capture.Camera, error) {
	cam := capture.NewCamera(id)
	if err := cam.Open(); err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	available := cam.SupportedResolutions(capture.CommonResolutions)
	if err := cam.Close(); err != nil {
		return nil, fmt.Errorf("close camera %d: %w", id, err)
	}

	if size, ok := capture.ChooseResolution(available, saved); ok {
		cam.SetResolution(size)
		logger.Info("camera resolution", "camera", id, "width", size.Width, "height", size.Height)
	} else {
		logger.Warn("camera reported no resolutions, using default", "camera", id)
	}
	return cam, nil
}

// runTray shows the indicator and blocks until it quits or ctx ends.
func runTray(ctx context.Context, quit context.CancelFunc, application *app.App, addr string, logger *slog.Logger) {
	indicator := tray.New(application.Running())
	application.AddSink(indicator)

	indicator.OnToggle(func(enabled bool) {
		var err error
		if enabled {
			err = application.Start()
		} else {
			err = application.Stop()
		}
		if err != nil {
			logger.Error("toggle pipeline", "enabled", enabled, "err", err)
		}
		indicator.SetEnabled(application.Running())
	})
	indicator.OnSettings(func() {
		logger.Info("settings", "url", "http://"+localAddr(addr)+"/")
	})
	indicator.OnQuit(quit)

	go func() {
		<-ctx.Done()
		indicator.Quit()
	}()
	indicator.Run()
}

func localAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
