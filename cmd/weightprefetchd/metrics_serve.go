package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/ggml-weight-prefetch/internal/telemetry"
)

func newCmdMetricsServe() *cli.Command {
	var listenOn string
	var diskDevice string
	var diskDir string
	return &cli.Command{
		Name:        "metrics-serve",
		Usage:       "Serve Prometheus metrics over HTTP.",
		Description: "Exposes promhttp.Handler() for the prefetch/evict histograms, the in-flight window gauge and the degraded-mode counters, plus an optional disk-IO collector.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Usage:       "Listen address",
				Value:       ":9090",
				Destination: &listenOn,
			},
			&cli.StringFlag{
				Name:        "disk-device",
				Usage:       "Block device name to watch with the disk-IO collector (e.g. nvme0n1); if empty and --disk-dir is set, it is resolved automatically",
				Destination: &diskDevice,
			},
			&cli.StringFlag{
				Name:        "disk-dir",
				Usage:       "Directory whose backing device should be watched with the disk-IO collector (e.g. the directory holding the weights file)",
				Destination: &diskDir,
			},
		},
		Action: func(c *cli.Context) error {
			if diskDevice == "" && diskDir != "" {
				dev, err := telemetry.DeviceForDirectory(diskDir)
				if err != nil {
					return fmt.Errorf("metrics-serve: resolve device for %q: %w", diskDir, err)
				}
				diskDevice = dev
			}
			if diskDevice != "" {
				prometheus.MustRegister(telemetry.NewDiskCollector([]string{diskDevice}))
				klog.Infof("metrics-serve: watching disk device %q", diskDevice)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: listenOn, Handler: mux}

			go func() {
				<-c.Context.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			klog.Infof("metrics-serve: listening on %s", listenOn)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
