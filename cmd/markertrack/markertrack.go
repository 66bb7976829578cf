package main

import (
	"fmt"
	"net"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/server"
	"github.com/cyclopcam/markertrack/server/config"
)

func main() {
	parser := argparse.NewParser("markertrack", "Track fiducial markers, and serve their world poses")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (defaults are used if empty)", Default: ""})
	mock := parser.Flag("", "mock", &argparse.Options{Help: "Use the synthetic marker scene instead of a camera", Default: false})
	frameDir := parser.String("", "frames", &argparse.Options{Help: "Directory of JPEG frames for the camera backend", Default: ""})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Sqlite file for the sighting log", Default: ""})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP listen address (eg :8090)", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	// Command line overrides the config file
	if *frameDir != "" {
		cfg.Backend = config.BackendCamera
		cfg.Camera.FrameDir = *frameDir
	}
	if *mock {
		cfg.Backend = config.BackendMock
	}
	if *dbFile != "" {
		cfg.SightingsDB = *dbFile
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	srv, err := server.NewServer(logger, cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Errorf("Failed to listen on %v: %v", cfg.Listen, err)
		srv.Close()
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(ln); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
		os.Exit(1)
	}
	<-srv.ShutdownComplete
}
