/*

Rootbench benchmarks root placement of rd against iqtree. For every
trial it draws a random non-reversible substitution model, simulates
alignments with INDELible (or uses the given alignments), runs the
root inference tools and compares the inferred roots with the true
ones.

The basic usage looks like this:

	rootbench --path exp --trees 10 --msa 1000 --iters 100

, this will run 100 trials on random 10-leaf trees with simulated
alignments of 1000 sites. Trees and alignments can be repeated and
can be files:

	rootbench --path exp --trees trees.nwk --trees 20 --msa ali.fst --iters 10 --procs 4

Interrupted experiments are resumed by running the same command
again. To see all the options run:

	rootbench -h

*/
package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/rootbench/experiment"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("rootbench")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are the loggers controlled by --loglevel.
var modules = []string{
	"rootbench",
	"experiment",
	"placement",
	"harvest",
	"checkpoint",
	"summary",
	"archive",
}

// command-line options
var (
	// application
	app = kingpin.New("rootbench", "root placement benchmark for rd and iqtree").Version(version)

	// experiment
	path  = app.Flag("path", "experiment directory").Required().String()
	msas  = app.Flag("msa", "alignment file or number of sites to simulate (repeatable)").Required().Strings()
	trees = app.Flag("trees", "newick file or number of leaves of a random tree (repeatable)").Required().Strings()
	iters = app.Flag("iters", "number of trials").Required().Int()
	procs = app.Flag("procs", "number of trials to run simultaneously").Default("1").Int()
	seed  = app.Flag("seed", "master random seed, random trial seeds by default").Default("-1").Int64()
	runRD = app.Flag("run-rd", "run rd").Default("true").Bool()
	runIQ = app.Flag("run-iq-tree", "run iqtree").Default("true").Bool()

	// rd parameters
	atol    = app.Flag("atol", "rd absolute tolerance").Default("1e-4").Float64()
	factor  = app.Flag("factor", "rd factor").Default("1e7").Float64()
	bfgstol = app.Flag("bfgstol", "rd BFGS tolerance").Default("1e-4").Float64()

	// tools
	rdBinary        = app.Flag("rd-binary", "rd binary name or path").Default(experiment.DefaultRDBinary).String()
	iqtreeBinary    = app.Flag("iqtree", "iqtree binary name or path").Default(experiment.DefaultIQTreeBinary).String()
	indelibleBinary = app.Flag("indelible", "INDELible binary name or path").Default(experiment.DefaultIndelibleBinary).String()
	rdTemplate      = app.Flag("rd-template", "rd command line template "+
		"(fields: .Binary, .MSA, .Tree, .Seed, .ATol, .Factor, .BFGSTol, .ModelParams, .FreqParams)").
		Default(experiment.DefaultRDTemplate).String()
	iqtreeTemplate = app.Flag("iqtree-template", "iqtree command line template (fields: .Binary, .MSA, .Tree)").
		Default(experiment.DefaultIQTreeTemplate).String()

	// output
	jsonF      = app.Flag("json", "write json report to a file").String()
	plotPrefix = app.Flag("plot", "draw root distance box plots to files with the prefix").String()
	gcsBucket  = app.Flag("gcs-bucket", "upload reports to a Cloud Storage bucket").String()
	gcsPrefix  = app.Flag("gcs-prefix", "object name prefix for the uploaded reports").String()
	gcsURL     = app.Flag("gcs-endpoint", "Cloud Storage endpoint, e.g. for an emulator").String()

	// logging
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// config creates the experiment configuration from the options.
func config() *experiment.Config {
	cfg := experiment.NewConfig()
	cfg.Path = *path
	cfg.Trees = *trees
	cfg.Alignments = *msas
	cfg.Iters = *iters
	cfg.Procs = *procs
	cfg.Seed = *seed
	cfg.RunRD = *runRD
	cfg.RunIQTree = *runIQ
	cfg.ATol = *atol
	cfg.Factor = *factor
	cfg.BFGSTol = *bfgstol
	cfg.RDBinary = *rdBinary
	cfg.IQTreeBinary = *iqtreeBinary
	cfg.IndelibleBinary = *indelibleBinary
	cfg.RDTemplate = *rdTemplate
	cfg.IQTreeTemplate = *iqtreeTemplate
	return cfg
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range modules {
		logging.SetLevel(level, m)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if err := run(config()); err != nil {
		log.Fatal(err)
	}
}
