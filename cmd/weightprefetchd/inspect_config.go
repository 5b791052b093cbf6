package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/ggml-weight-prefetch/internal/config"
)

func newCmdInspectConfig() *cli.Command {
	var sharedPath string
	return &cli.Command{
		Name:        "inspect-config",
		Usage:       "Print K and W from the shared-memory config file.",
		Description: "Reads the 8-byte little-endian K/W payload the runtime persists for the backend and prints it.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "shared-file",
				Usage:       "Path to the 8-byte shared-memory K/W file",
				Required:    true,
				Destination: &sharedPath,
			},
		},
		Action: func(c *cli.Context) error {
			shared, err := config.ReadShared(sharedPath)
			if err != nil {
				return err
			}
			fmt.Printf("K=%d W=%d\n", shared.K, shared.W)
			return nil
		},
	}
}
