package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/campusgate/internal/buildinfo"
	"github.com/dmitrijs2005/campusgate/internal/client/cli"
	"github.com/dmitrijs2005/campusgate/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatal(err)
	}

	app.Run(context.Background())
}
