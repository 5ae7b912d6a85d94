package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"

	subnetsocks "github.com/subnet-socks/subnet-socks"
	"github.com/subnet-socks/subnet-socks/logging"
	"github.com/subnet-socks/subnet-socks/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version  bool
	testConf bool
	restrict bool
	port     uint
	confPath string
	listen   string
	zapConf  string
	logLevel zapcore.Level
)

func init() {
	flag.BoolVar(&version, "version", false, "Print version information and exit")
	flag.BoolVar(&testConf, "testConf", false, "Test the configuration file and exit")
	flag.BoolVar(&restrict, "restrict", false, "Only allow CONNECT targets in the subnet of the interface that owns the listen address")
	flag.UintVar(&port, "port", 0, "Override the port of the listen address")
	flag.StringVar(&confPath, "confPath", "", "Path to the JSON configuration file. If empty, defaults and flags are used")
	flag.StringVar(&listen, "listen", "", "Override the listen address, e.g. 192.168.1.10:1080")
	flag.StringVar(&zapConf, "zapConf", "console", "Preset name or path to the JSON configuration file for building the zap logger.\nAvailable presets: console, console-nocolor, console-notime, systemd, production, development")
	flag.TextVar(&logLevel, "logLevel", zapcore.InfoLevel, "Log level for the console and systemd presets.\nAvailable levels: debug, info, warn, error, dpanic, panic, fatal")
}

// loadConfig loads the config file if one is given, then applies flag overrides.
func loadConfig() (*service.Config, error) {
	var sc service.Config
	if confPath != "" {
		cfg, err := service.LoadConfig(confPath)
		if err != nil {
			return nil, err
		}
		sc = *cfg
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			sc.Listen = listen
		case "restrict":
			sc.RestrictToSameSubnet = restrict
		}
	})
	sc.ApplyDefaults()

	if port != 0 {
		if port > 65535 {
			return nil, fmt.Errorf("port out of range: %d", port)
		}
		host, _, err := net.SplitHostPort(sc.Listen)
		if err != nil {
			return nil, fmt.Errorf("bad listen address %q: %w", sc.Listen, err)
		}
		sc.Listen = net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
	}

	return &sc, sc.Validate()
}

func main() {
	flag.Parse()

	if version {
		os.Stdout.WriteString("subnet-socks " + subnetsocks.Version + "\n")
		if info, ok := debug.ReadBuildInfo(); ok {
			os.Stdout.WriteString(info.String())
		}
		return
	}

	logger, err := logging.NewZapLogger(zapConf, logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("subnet-socks", zap.String("version", subnetsocks.Version))

	sc, err := loadConfig()
	if err != nil {
		logger.Fatal("Failed to load config",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	m, err := sc.Manager(logger)
	if err != nil {
		logger.Fatal("Failed to create service manager",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	if testConf {
		logger.Info("Config test OK", zap.String("confPath", confPath))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Received exit signal", zap.Stringer("signal", sig))
		signal.Stop(sigCh)
		cancel()
	}()

	if err = m.Start(ctx); err != nil {
		logger.Fatal("Failed to start services",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	<-ctx.Done()
	m.Stop()
}
