// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/assesshub/platform/internal/config"
	"github.com/assesshub/platform/internal/server"
)

func main() {
	cmd := &cli.Command{
		Name:   "assesshub",
		Usage:  "Start the assessment platform server",
		Flags:  config.Flags(),
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
