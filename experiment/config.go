// Package experiment runs root inference benchmarks: it creates
// trials with random substitution models, simulates or copies
// alignments, runs the root inference tools and harvests the results.
package experiment

import (
	"errors"
	"fmt"
	"os/exec"
	"text/template"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("experiment")

// Default tool settings.
const (
	DefaultRDBinary        = "rd"
	DefaultIQTreeBinary    = "iqtree"
	DefaultIndelibleBinary = "indelible"

	DefaultRDTemplate = "{{.Binary}} --msa {{.MSA}} --tree {{.Tree}} --states 4 --seed {{.Seed}} --force" +
		" --atol {{.ATol}} --factor {{.Factor}} --bfgstol {{.BFGSTol}}"
	DefaultIQTreeTemplate = "{{.Binary}} -m 12.12 -s {{.MSA}} -g {{.Tree}}"
)

// Config stores experiment settings.
type Config struct {
	// Path is the experiment root directory.
	Path string
	// Trees are tree specifications: a number of leaves for
	// random trees or a file with newick trees.
	Trees []string
	// Alignments are alignment specifications: a number of sites to
	// simulate or an alignment file.
	Alignments []string
	// Iters is the number of trials.
	Iters int
	// Procs is the number of trials running simultaneously.
	Procs int

	// rd settings.
	ATol    float64
	Factor  float64
	BFGSTol float64

	RunRD     bool
	RunIQTree bool

	// Seed is the master seed, negative means random seeds.
	Seed int64

	RDBinary        string
	IQTreeBinary    string
	IndelibleBinary string
	RDTemplate      string
	IQTreeTemplate  string
}

// NewConfig returns configuration with default values.
func NewConfig() *Config {
	return &Config{
		Iters:           1,
		Procs:           1,
		ATol:            1e-4,
		Factor:          1e7,
		BFGSTol:         1e-4,
		RunRD:           true,
		RunIQTree:       true,
		Seed:            -1,
		RDBinary:        DefaultRDBinary,
		IQTreeBinary:    DefaultIQTreeBinary,
		IndelibleBinary: DefaultIndelibleBinary,
		RDTemplate:      DefaultRDTemplate,
		IQTreeTemplate:  DefaultIQTreeTemplate,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return errors.New("experiment path is required")
	case len(c.Trees) == 0:
		return errors.New("at least one tree is required")
	case len(c.Alignments) == 0:
		return errors.New("at least one alignment is required")
	case c.Iters < 1:
		return fmt.Errorf("number of iterations should be positive, got %d", c.Iters)
	case c.Procs < 1:
		return fmt.Errorf("number of processes should be positive, got %d", c.Procs)
	case c.ATol <= 0 || c.Factor <= 0 || c.BFGSTol <= 0:
		return errors.New("atol, factor and bfgstol should be positive")
	}
	if _, err := template.New("rd").Parse(c.RDTemplate); err != nil {
		return fmt.Errorf("rd template: %w", err)
	}
	if _, err := template.New("iqtree").Parse(c.IQTreeTemplate); err != nil {
		return fmt.Errorf("iqtree template: %w", err)
	}
	return nil
}

// CheckTools checks that the required binaries are in the PATH.
func (c *Config) CheckTools(simulate bool) error {
	var binaries []string
	if c.RunRD {
		binaries = append(binaries, c.RDBinary)
	}
	if c.RunIQTree {
		binaries = append(binaries, c.IQTreeBinary)
	}
	if simulate {
		binaries = append(binaries, c.IndelibleBinary)
	}
	for _, b := range binaries {
		path, err := exec.LookPath(b)
		if err != nil {
			return fmt.Errorf("please add %s to your path: %w", b, err)
		}
		log.Debugf("%s: %s", b, path)
	}
	return nil
}
