package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/campusgate/internal/buildinfo"
	"github.com/dmitrijs2005/campusgate/internal/server"
	"github.com/dmitrijs2005/campusgate/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}
