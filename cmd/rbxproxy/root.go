package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd mirrors the teacher's defaultFactory root command in
// cmd/cobra.go: a short Long description, an Example block, and
// SilenceUsage so a provisioning error doesn't also dump usage text.
var rootCmd = &cobra.Command{
	Use:   "rbxproxy",
	Short: "A hostname-transforming reverse proxy",
	Long: `rbxproxy is a reverse proxy that rewrites test/staging
hostnames to their production apex before forwarding, while guarding
against SSRF pivots back onto its own host or LAN.

Requests pass through a fixed pipeline: source guard, health
responder, hostname resolver, safety filter, rule engine, forwarder.
Each stage may short-circuit the response; every request still
produces exactly one outcome.

Configuration is entirely environment-variable driven (see
SPEC_FULL.md §6), with an optional dotenv file and a multicast
config replicator for propagating runtime overrides across replicas.`,
	Example: `  $ rbxproxy run
  $ rbxproxy run --env-file .env
  $ rbxproxy version`,
	SilenceUsage:  true,
	Version:       version,
	SilenceErrors: false,
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(runCmd, versionCmd)
}
