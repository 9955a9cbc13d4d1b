// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Command releasectl is the Releasewatch operator CLI. It reads the same
// configuration as the server (.env, CONFIG_PATH and environment).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tomtom215/releasewatch/internal/cli"
)

var version = "dev"

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
