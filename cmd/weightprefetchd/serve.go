package main

import (
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/ggml-weight-prefetch/internal/catalog"
	"github.com/rpcpool/ggml-weight-prefetch/internal/config"
	"github.com/rpcpool/ggml-weight-prefetch/internal/coordination"
	"github.com/rpcpool/ggml-weight-prefetch/internal/pagefile"
	"github.com/rpcpool/ggml-weight-prefetch/internal/scheduler"
	"github.com/rpcpool/ggml-weight-prefetch/internal/telemetry"
)

func newCmdServe() *cli.Command {
	var sharedPath string
	var catalogPath string
	var weightsPath string
	var telemetryPath string
	var stepDelay time.Duration

	return &cli.Command{
		Name:        "serve",
		Usage:       "Run the prefetch scheduler against a weights file and a simulated compute loop.",
		Description: "Reads K/W from the shared-memory file and the layer layout from a catalogue config file, builds the catalogue, spawns the scheduler, and drives a simulated compute loop over the catalogue's layers in order. Used for load-testing and reproducing the worked scenarios.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "shared-file",
				Usage:       "Path to the 8-byte shared-memory K/W file",
				Required:    true,
				Destination: &sharedPath,
			},
			&cli.StringFlag{
				Name:        "catalog-file",
				Usage:       "Path to the YAML/JSON catalogue config file",
				Required:    true,
				Destination: &catalogPath,
			},
			&cli.StringFlag{
				Name:        "weights-file",
				Usage:       "Path to the weights file to mmap",
				Required:    true,
				Destination: &weightsPath,
			},
			&cli.StringFlag{
				Name:        "telemetry-file",
				Usage:       "Path to write free-form telemetry lines to; empty disables the fd side of the sink (metrics are always recorded)",
				Destination: &telemetryPath,
			},
			&cli.DurationFlag{
				Name:        "step-delay",
				Usage:       "Simulated compute time spent on each layer before releasing it",
				Value:       10 * time.Millisecond,
				Destination: &stepDelay,
			},
		},
		Action: func(c *cli.Context) error {
			shared, err := config.ReadShared(sharedPath)
			if err != nil {
				return err
			}

			cat, err := buildCatalog(catalogPath, shared)
			if err != nil {
				return err
			}

			region, err := pagefile.Open(weightsPath)
			if err != nil {
				return err
			}
			defer region.Close()

			sink, err := openSink(telemetryPath)
			if err != nil {
				return err
			}
			defer sink.Close()

			nodes := syntheticNodes(cat)
			ctx := coordination.New(cat, region, sink, nodes)
			ctx.PrefetchResident()

			stopCh := make(chan struct{})
			sched := scheduler.New(cat, region, sink, stopCh)
			go sched.Run()

			runComputeLoop(c, cat, ctx, stepDelay)
			close(stopCh)
			return nil
		},
	}
}

func buildCatalog(catalogPath string, shared config.Shared) (*catalog.Catalog, error) {
	cf, err := config.LoadCatalogFile(catalogPath)
	if err != nil {
		return nil, err
	}

	offsets := make(map[string][]catalog.OffsetEntry, len(cf.Layers))
	for name, layer := range cf.Layers {
		entries := make([]catalog.OffsetEntry, 0, len(layer.Fragments))
		for _, r := range layer.Fragments {
			entries = append(entries, catalog.OffsetEntry{Name: name, Start: r.Start, End: r.End, Index: layer.Index})
		}
		offsets[name] = entries
	}

	return catalog.New(offsets, shared.K, shared.W, cf.PrefetchInput)
}

func openSink(path string) (*telemetry.Sink, error) {
	if path == "" {
		return telemetry.NewSink(nil), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return telemetry.NewSink(f), nil
}

// syntheticNodes builds one graph node per catalogue layer, in catalogue
// order, each carrying a single source tensor name that the Layer Name
// Resolver maps back to that layer — used when serve is driving a
// simulated compute loop rather than a real tensor graph.
func syntheticNodes(cat *catalog.Catalog) []catalog.Node {
	nodes := make([]catalog.Node, len(cat.Order))
	for i, name := range cat.Order {
		nodes[i] = catalog.Node{Sources: []catalog.Source{{Name: syntheticSourceName(name)}}}
	}
	return nodes
}

func syntheticSourceName(layerName string) string {
	switch {
	case layerName == "output_norm":
		return "output_norm.synthetic"
	case layerName == "output_weight":
		return "output.synthetic"
	case strings.HasPrefix(layerName, "blk."):
		return layerName + ".synthetic"
	default:
		return layerName
	}
}

func runComputeLoop(c *cli.Context, cat *catalog.Catalog, ctx *coordination.Context, stepDelay time.Duration) {
	for i, name := range cat.Order {
		select {
		case <-c.Context.Done():
			klog.Warningf("serve: compute loop interrupted at layer %q", name)
			return
		default:
		}

		d := cat.ByName[name]
		if !d.IsDynamic {
			continue
		}
		ctx.WaitReady(i)
		time.Sleep(stepDelay)
		ctx.NotifyDone(i)
	}
}
