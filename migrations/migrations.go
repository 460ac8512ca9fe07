// Package migrations embeds the schema so tests and tooling apply the same
// files the migrate CLI runs in deployments.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
