// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// jamnpd runs a bare networking node from a YAML config. It exists for
// soak testing the substrate; a real validator embeds the jamnp.Node and
// wires its own chain, ticket and store services.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/jamnp"
	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/identity"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		keyHex     string
		builder    bool
	)

	cmd := &cobra.Command{
		Use:   "jamnpd",
		Short: "Run a JAMNP networking node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			seed, err := hex.DecodeString(keyHex)
			if err != nil || len(seed) != ed25519.SeedSize {
				return fmt.Errorf("--key must be a 32-byte hex seed")
			}
			role := identity.RoleValidator
			if builder {
				role = identity.RoleBuilder
			}

			node, err := jamnp.NewNode(jamnp.Options{
				Config:     cfg,
				PrivateKey: ed25519.NewKeyFromSeed(seed),
				Role:       role,
				Registerer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := node.Start(ctx); err != nil {
				return err
			}
			node.StartSlotTicker(ctx, time.Now())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return node.Stop()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to node.yaml")
	cmd.Flags().StringVar(&keyHex, "key", "", "hex ed25519 seed")
	cmd.Flags().BoolVar(&builder, "builder", false, "run with the builder role")
	return cmd
}
