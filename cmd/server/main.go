package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/taskflow/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"TASKFLOW_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" default:"withargs" help:"Start the API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply global store migrations"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("taskflow"),
		kong.Description("Multi-tenant task tracking service."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
