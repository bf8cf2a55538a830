package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"camtrap/internal/app"
	"camtrap/internal/logger"
	"camtrap/internal/models"
	"camtrap/internal/services/batch"
	"camtrap/internal/services/export"
)

func runAction(c *cli.Context, a *app.App, log *logger.Logger) error {
	req := batch.Request{
		RootDir:             c.Path(flagDir),
		Recursive:           c.Bool(flagRecursive),
		ConfidenceThreshold: c.Float64(flagConfidence),
		IOUThreshold:        c.Float64(flagIOU),
	}

	start := time.Now()
	result, runErr := a.Manager().RunBatch(c.Context, req)
	if result == nil {
		return runErr
	}
	printSummary(c, result, time.Since(start))

	absolute := c.Bool(flagAbsolute)
	for _, target := range []struct{ path, format string }{
		{c.Path(flagCSV), export.FormatCSV},
		{c.Path(flagJSON), export.FormatJSON},
	} {
		if target.path == "" {
			continue
		}
		if err := export.WriteFile(target.path, target.format, result, absolute); err != nil {
			return errors.Wrapf(err, "%s export", target.format)
		}
		log.Info("Wrote %s export to %s", strings.ToUpper(target.format), target.path)
	}

	return runErr
}

func printSummary(c *cli.Context, result *models.BatchResult, elapsed time.Duration) {
	var failed, empty, detections int
	for _, img := range result.Images {
		switch {
		case img.Failed():
			failed++
		case img.Empty():
			empty++
		default:
			detections += len(img.Detections)
		}
	}
	fmt.Fprintf(c.App.Writer, "run %s: %d images in %v, %d detections, %d empty, %d failed\n",
		result.RunID, len(result.Images), elapsed.Round(time.Millisecond), detections, empty, failed)
}

func listRunsAction(c *cli.Context, a *app.App, log *logger.Logger) error {
	runs, err := a.Manager().Runs(c.Int(flagLimit))
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(c.App.Writer, "%s  %-9s  %5d images  %s  %s\n",
			run.ID, run.Status, run.Total, run.StartedAt.Local().Format(time.DateTime), run.BaseDir)
	}
	return nil
}

func exportAction(c *cli.Context, a *app.App, log *logger.Logger) error {
	output := c.Path(flagOutput)
	format := c.String(flagFormat)
	if format == "" {
		format = export.FormatFromPath(output)
	}

	result, err := a.Manager().Result(c.String(flagRun))
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, strings.ToLower(format), result, c.Bool(flagAbsolute)); err != nil {
		return err
	}
	log.Info("Exported run %s to %s", result.RunID, output)
	return nil
}

func exportImagesAction(c *cli.Context, a *app.App, log *logger.Logger) error {
	var filter export.FilterCriteria
	for _, f := range []struct {
		flag   string
		target *export.Criterion
	}{
		{flagAnimals, &filter.Animals},
		{flagHumans, &filter.Humans},
		{flagVehicles, &filter.Vehicles},
		{flagEmpty, &filter.Empty},
	} {
		if err := f.target.UnmarshalText([]byte(c.String(f.flag))); err != nil {
			return errors.Wrapf(err, "--%s", f.flag)
		}
	}

	var draw export.DrawCriteria
	for _, category := range c.StringSlice(flagDraw) {
		switch strings.ToLower(strings.TrimSpace(category)) {
		case "animals":
			draw.Animals = true
		case "humans":
			draw.Humans = true
		case "vehicles":
			draw.Vehicles = true
		default:
			return errors.Errorf("--%s: unknown category %q", flagDraw, category)
		}
	}

	summary, err := a.Manager().ExportImages(c.Context, c.String(flagRun), c.Path(flagOutput), filter, draw)
	fmt.Fprintf(c.App.Writer, "%d matching images, %d written, %d failed\n", summary.Matched, summary.Written, summary.Failed)
	return err
}

func importAction(c *cli.Context, a *app.App, log *logger.Logger) error {
	f, err := os.Open(c.Path(flagInput))
	if err != nil {
		return err
	}
	defer f.Close()

	baseDir, err := filepath.Abs(c.Path(flagBaseDir))
	if err != nil {
		return err
	}
	images, err := export.ReadJSON(f, baseDir)
	if err != nil {
		return err
	}

	runID, err := a.Manager().Import(baseDir, images)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d images as run %s\n", len(images), runID)
	return nil
}
