// Package commands defines the novastack CLI.
//
// Commands
//
//   - serve      Run the REST API and the wallet background jobs
//   - migrate    Apply, roll back or inspect the PostgreSQL schema
//   - wallet     Query the Monero wallet RPC daemon
//   - token      Issue a bearer token for local testing
//
// The root command loads configuration (defaults, then NOVASTACK_CONFIG, .env
// and the environment) and builds the logger before any subcommand runs.
package commands
