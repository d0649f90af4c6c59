package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bitbucket.org/Davydov/rootbench/archive"
	"bitbucket.org/Davydov/rootbench/checkpoint"
	"bitbucket.org/Davydov/rootbench/experiment"
	"bitbucket.org/Davydov/rootbench/summary"
)

// checkpointFile is the progress database in the experiment root.
const checkpointFile = "checkpoint.db"

// run runs the whole experiment and writes the reports.
func run(cfg *experiment.Config) error {
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return err
	}
	store, err := checkpoint.Open(filepath.Join(cfg.Path, checkpointFile))
	if err != nil {
		return fmt.Errorf("opening checkpoint: %w", err)
	}
	defer store.Close()

	exp, err := experiment.New(cfg, store)
	if err != nil {
		return err
	}
	if err := cfg.CheckTools(exp.Simulate()); err != nil {
		return err
	}

	if err := writeTreeMap(exp, filepath.Join(cfg.Path, experiment.TreeMapFile)); err != nil {
		return err
	}

	trials, err := exp.Trials()
	if err != nil {
		return err
	}

	progress := make(chan experiment.Progress)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for p := range progress {
			log.Noticef("%s finished (%d/%d)", p.Trial, p.Done, p.Total)
		}
	}()
	results, err := exp.RunAll(ctx, trials, progress)
	<-logged
	if err != nil {
		return err
	}

	var files []string

	sum := summary.New(results)
	resFile := filepath.Join(cfg.Path, summary.ResultsFile)
	if err := sum.Write(resFile); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	log.Noticef("Results written to %s", resFile)
	files = append(files, resFile)

	counts, err := exp.MapRoots(results)
	if err != nil {
		return fmt.Errorf("mapping roots: %w", err)
	}
	mapped, err := exp.WriteMappedTrees(counts)
	if err != nil {
		return fmt.Errorf("writing mapped trees: %w", err)
	}
	files = append(files, mapped...)

	if *plotPrefix != "" {
		plots, err := sum.Plot(*plotPrefix)
		if err != nil {
			return fmt.Errorf("plotting: %w", err)
		}
		files = append(files, plots...)
	}

	deltaT := time.Since(startTime)
	log.Noticef("Running time: %v", deltaT)

	if *jsonF != "" {
		seeds := make(map[string]uint64, len(trials))
		for _, t := range trials {
			seeds[t.Name] = t.Seed
		}
		report := &summary.Report{
			Version:     version,
			CommandLine: os.Args,
			Seed:        cfg.Seed,
			Seeds:       seeds,
			Procs:       cfg.Procs,
			Time:        deltaT.Seconds(),
			Experiments: sum.Experiments,
		}
		if err := report.WriteJSON(*jsonF); err != nil {
			return fmt.Errorf("writing json report: %w", err)
		}
		files = append(files, *jsonF)
	}

	if *gcsBucket != "" {
		return upload(ctx, files)
	}
	return nil
}

// writeTreeMap writes names of the user trees.
func writeTreeMap(exp *experiment.Experiment, fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = e
		}
	}()
	return exp.WriteTreeMap(f)
}

// upload uploads the report files to the Cloud Storage bucket.
func upload(ctx context.Context, files []string) error {
	a, err := archive.New(ctx, *gcsBucket, *gcsPrefix, *gcsURL)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Infof("Uploading %d file(s) to gs://%s", len(files), *gcsBucket)
	return a.Upload(ctx, files...)
}
