package experiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"bitbucket.org/Davydov/rootbench/harvest"
	"bitbucket.org/Davydov/rootbench/model"
)

// Simulator file names.
const (
	ControlFile      = "control.txt"
	SimulatedMSA     = "seqs_TRUE.phy"
	SubstModelFile   = "subst.model"
	FreqModelFile    = "freqs.model"
	controlFileTmplS = `
[TYPE] NUCLEOTIDE 1

[SETTINGS]
  [randomseed] {{.Seed}}

[MODEL] m1
  [submodel] UNREST {{.ModelParams}}
  [statefreq] {{.FreqParams}}

[TREE] t1 {{.Tree}}

[PARTITIONS] p1
  [t1 m1 {{.Sites}}]

[EVOLVE] p1 1 seqs
`
)

var controlFileTmpl = template.Must(template.New("control").Parse(controlFileTmplS))

// Control is the simulator control file data.
type Control struct {
	Seed        uint64
	ModelParams string
	FreqParams  string
	Tree        string
	Sites       int
}

// NewControl creates control file data in the simulator state order.
func NewControl(seed uint64, params model.Parameters, newick string, sites int) Control {
	return Control{
		Seed:        seed,
		ModelParams: params.Subst.NativeString(),
		FreqParams:  params.Freq.NativeString(),
		Tree:        strings.TrimSpace(newick),
		Sites:       sites,
	}
}

// Write writes the control file.
func (c Control) Write(w io.Writer) error {
	return controlFileTmpl.Execute(w, c)
}

// RDArgs are the fields available in the rd command template.
type RDArgs struct {
	Binary  string
	MSA     string
	Tree    string
	Seed    uint64
	ATol    float64
	Factor  float64
	BFGSTol float64
	// Parameters in the rd state order.
	ModelParams string
	FreqParams  string
}

// IQTreeArgs are the fields available in the iqtree command template.
type IQTreeArgs struct {
	Binary string
	MSA    string
	Tree   string
}

// Tools runs the external programs.
type Tools struct {
	cfg    *Config
	rd     *template.Template
	iqtree *template.Template
}

// NewTools parses command templates.
func NewTools(cfg *Config) (*Tools, error) {
	rd, err := template.New("rd").Option("missingkey=error").Parse(cfg.RDTemplate)
	if err != nil {
		return nil, fmt.Errorf("rd template: %w", err)
	}
	iqtree, err := template.New("iqtree").Option("missingkey=error").Parse(cfg.IQTreeTemplate)
	if err != nil {
		return nil, fmt.Errorf("iqtree template: %w", err)
	}
	return &Tools{cfg: cfg, rd: rd, iqtree: iqtree}, nil
}

// command executes the template and splits it into arguments.
func command(tmpl *template.Template, data interface{}) ([]string, error) {
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return nil, err
	}
	args := strings.Fields(b.String())
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: empty command", tmpl.Name())
	}
	return args, nil
}

// run runs the command in the directory.
func run(ctx context.Context, dir string, args []string, stdout, stderr io.Writer) error {
	log.Debugf("%s: %s", dir, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

// Simulate runs the simulator in the directory with control file.
func (t *Tools) Simulate(ctx context.Context, dir string) error {
	var stderr bytes.Buffer
	err := run(ctx, dir, []string{t.cfg.IndelibleBinary}, io.Discard, &stderr)
	if err != nil {
		return withOutput(err, stderr.Bytes())
	}
	if _, err := os.Stat(filepath.Join(dir, SimulatedMSA)); err != nil {
		return fmt.Errorf("%s: no simulated alignment: %w", t.cfg.IndelibleBinary, err)
	}
	return nil
}

// RunRD runs rd in the directory. Standard output and error are saved
// to files.
func (t *Tools) RunRD(ctx context.Context, dir string, a RDArgs) (err error) {
	a.Binary = t.cfg.RDBinary
	a.ATol = t.cfg.ATol
	a.Factor = t.cfg.Factor
	a.BFGSTol = t.cfg.BFGSTol
	args, err := command(t.rd, a)
	if err != nil {
		return err
	}

	stdout, err := os.Create(filepath.Join(dir, harvest.RDOutput))
	if err != nil {
		return err
	}
	defer func() {
		if e := stdout.Close(); e != nil && err == nil {
			err = e
		}
	}()
	stderr, err := os.Create(filepath.Join(dir, harvest.RDError))
	if err != nil {
		return err
	}
	defer func() {
		if e := stderr.Close(); e != nil && err == nil {
			err = e
		}
	}()

	return run(ctx, dir, args, stdout, stderr)
}

// RunIQTree runs iqtree in the directory. Standard output is
// discarded.
func (t *Tools) RunIQTree(ctx context.Context, dir string, a IQTreeArgs) error {
	a.Binary = t.cfg.IQTreeBinary
	args, err := command(t.iqtree, a)
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	if err := run(ctx, dir, args, io.Discard, &stderr); err != nil {
		return withOutput(err, stderr.Bytes())
	}
	return nil
}

// withOutput appends the last line of the tool output to the error.
func withOutput(err error, out []byte) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if last := lines[len(lines)-1]; last != "" {
		return fmt.Errorf("%w (%s)", err, last)
	}
	return err
}
