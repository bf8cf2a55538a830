// Package main is the command line front end: run a batch, list stored runs and export them.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"camtrap/internal/app"
	"camtrap/internal/config"
	"camtrap/internal/logger"
)

const (
	flagDir        = "dir"
	flagRecursive  = "recursive"
	flagConfidence = "confidence"
	flagIOU        = "iou"
	flagCSV        = "csv"
	flagJSON       = "json"
	flagAbsolute   = "absolute"
	flagRun        = "run"
	flagFormat     = "format"
	flagOutput     = "output"
	flagLimit      = "limit"
	flagAnimals    = "animals"
	flagHumans     = "humans"
	flagVehicles   = "vehicles"
	flagEmpty      = "empty"
	flagDraw       = "draw"
	flagDebug      = "debug"
	flagInput      = "input"
	flagBaseDir    = "base-dir"
)

func main() {
	cfg := config.Load()

	cliApp := &cli.App{
		Name:  "camtrap",
		Usage: "detect animals, humans and vehicles in camera trap images",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				cfg.LogLevel = "debug"
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run detection over a directory and store the results",
				UsageText: "camtrap run --dir <images> [--recursive] [--csv results.csv] [--json results.json]",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagDir, Aliases: []string{"d"}, Required: true, Usage: "directory with images"},
					&cli.BoolFlag{Name: flagRecursive, Aliases: []string{"r"}, Usage: "include subdirectories"},
					&cli.Float64Flag{Name: flagConfidence, Value: cfg.ConfidenceThreshold, Usage: "minimum detection confidence"},
					&cli.Float64Flag{Name: flagIOU, Value: cfg.IOUThreshold, Usage: "IOU threshold for suppression"},
					&cli.PathFlag{Name: flagCSV, Usage: "also write a CSV export to `FILE`"},
					&cli.PathFlag{Name: flagJSON, Usage: "also write a JSON export to `FILE`"},
					&cli.BoolFlag{Name: flagAbsolute, Usage: "use absolute file paths in exports"},
				},
				Action: withApp(cfg, runAction),
			},
			{
				Name:  "runs",
				Usage: "list stored runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagLimit, Value: 20, Usage: "maximum number of runs"},
				},
				Action: withApp(cfg, listRunsAction),
			},
			{
				Name:  "export",
				Usage: "export a stored run as CSV or JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagRun, Usage: "run id, the latest run when empty"},
					&cli.StringFlag{Name: flagFormat, Usage: "csv or json, guessed from the output extension when empty"},
					&cli.PathFlag{Name: flagOutput, Aliases: []string{"o"}, Required: true, Usage: "output `FILE`"},
					&cli.BoolFlag{Name: flagAbsolute, Usage: "use absolute file paths"},
				},
				Action: withApp(cfg, exportAction),
			},
			{
				Name:  "export-images",
				Usage: "write annotated copies of matching images of a stored run",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagRun, Usage: "run id, the latest run when empty"},
					&cli.PathFlag{Name: flagOutput, Aliases: []string{"o"}, Required: true, Usage: "output `DIR`, must differ from the image directory"},
					&cli.StringFlag{Name: flagAnimals, Value: "include", Usage: "include, intersect or exclude images with animals"},
					&cli.StringFlag{Name: flagHumans, Value: "intersect", Usage: "include, intersect or exclude images with humans"},
					&cli.StringFlag{Name: flagVehicles, Value: "intersect", Usage: "include, intersect or exclude images with vehicles"},
					&cli.StringFlag{Name: flagEmpty, Value: "intersect", Usage: "include, intersect or exclude empty images"},
					&cli.StringSliceFlag{Name: flagDraw, Value: cli.NewStringSlice("animals", "humans", "vehicles"), Usage: "categories to draw boxes for"},
				},
				Action: withApp(cfg, exportImagesAction),
			},
			{
				Name:  "import",
				Usage: "store a JSON export as a completed run",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagInput, Aliases: []string{"i"}, Required: true, Usage: "JSON export `FILE`"},
					&cli.PathFlag{Name: flagBaseDir, Required: true, Usage: "directory the exported paths are relative to"},
				},
				Action: withApp(cfg, importAction),
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "camtrap: %v\n", err)
		os.Exit(1)
	}
}

// withApp builds the application around action and tears it down afterwards.
func withApp(cfg *config.Config, action func(c *cli.Context, a *app.App, log *logger.Logger) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		log := logger.NewLogger(cfg)
		a, err := app.NewApp(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		c.Context = ctx
		a.Start(ctx)

		return action(c, a, log)
	}
}
