package experiment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat/distuv"

	"bitbucket.org/Davydov/rootbench/checkpoint"
	"bitbucket.org/Davydov/rootbench/harvest"
	"bitbucket.org/Davydov/rootbench/model"
	"bitbucket.org/Davydov/rootbench/tree"
)

// Random tree branch lengths are exponentially distributed with
// mean 0.1, plus minBrLen.
const (
	brLenRate = 10
	minBrLen  = 0.005
)

// Checkpoint stage names.
const (
	stageSimulate = "indelible"
	stageRD       = "rd"
	stageIQTree   = "iqtree"
)

// Method names.
const (
	RD     = "rd"
	IQTree = "iqtree"
)

// Trial is a single iteration of the experiment. Every trial has its
// own seed, substitution model and random trees.
type Trial struct {
	Index int
	Name  string
	Dir   string
	Seed  uint64

	trees      []TreeInput
	trueTrees  map[string]*tree.Tree
	alignments []AlignmentInput
	cfg        *Config
	tools      *Tools
	store      *checkpoint.Store
}

// TrialResult stores results of all the experiments of a trial.
type TrialResult struct {
	Name   string
	Seed   uint64
	Params model.Parameters
	Keys   []Key
	// Results per method, nil if the method was not run.
	Results map[string]map[Key]*harvest.Result
	// TrueTrees are the unrooted true trees by tree name.
	TrueTrees map[string]*tree.Tree
}

// Result returns the result of the method for the experiment.
func (r *TrialResult) Result(method string, k Key) (*harvest.Result, bool) {
	res, ok := r.Results[method][k]
	return res, ok
}

// RandomTree creates a random unrooted tree with n leaves.
func RandomTree(n int, rng *rand.Rand) (*tree.Tree, error) {
	t, err := tree.Populate(n, rng, func() float64 { return 0 })
	if err != nil {
		return nil, err
	}
	if err := t.Unroot(); err != nil {
		return nil, err
	}
	brlen := distuv.Exponential{Rate: brLenRate, Src: rng}
	for node := range t.Walker(nil) {
		node.BranchLength = brlen.Rand() + minBrLen
	}
	return t, nil
}

// treeFile returns the true tree file name.
func (t *Trial) treeFile(name string) string {
	return filepath.Join(t.Dir, name+".tree")
}

// prepareTrees reads true trees saved by a previous run or creates
// them.
func (t *Trial) prepareTrees() error {
	t.trueTrees = make(map[string]*tree.Tree, len(t.trees))
	for i, ti := range t.trees {
		fn := t.treeFile(ti.Name)
		if f, err := os.Open(fn); err == nil {
			tt, err := tree.ParseNewick(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", fn, err)
			}
			log.Debugf("%s: reusing %s", t.Name, fn)
			t.trueTrees[ti.Name] = tt
			continue
		}

		var tt *tree.Tree
		var err error
		if ti.Random() {
			rng := rand.New(rand.NewPCG(t.Seed, uint64(i+1)))
			tt, err = RandomTree(ti.Leaves, rng)
		} else {
			tt = ti.Tree.Copy()
			err = tt.Unroot()
		}
		if err != nil {
			return fmt.Errorf("tree %s: %w", ti.Name, err)
		}
		if err := os.WriteFile(fn, []byte(tt.String()+"\n"), 0644); err != nil {
			return err
		}
		t.trueTrees[ti.Name] = tt
	}
	return nil
}

// done checks if the stage is finished.
func (t *Trial) done(stage ...string) (bool, error) {
	return t.store.Done(stageKey(append([]string{t.Name}, stage...)...))
}

// setDone marks the stage as finished.
func (t *Trial) setDone(stage ...string) error {
	return t.store.SetDone(stageKey(append([]string{t.Name}, stage...)...))
}

// Run runs all the experiments of the trial. Finished stages are
// skipped.
func (t *Trial) Run(ctx context.Context) (*TrialResult, error) {
	params := model.NewParameters(t.Seed)
	if err := os.WriteFile(filepath.Join(t.Dir, SubstModelFile), []byte(params.Subst.NativeString()), 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(t.Dir, FreqModelFile), []byte(params.Freq.NativeString()), 0644); err != nil {
		return nil, err
	}

	res := &TrialResult{
		Name:      t.Name,
		Seed:      t.Seed,
		Params:    params,
		Results:   make(map[string]map[Key]*harvest.Result),
		TrueTrees: t.trueTrees,
	}
	if t.cfg.RunRD {
		res.Results[RD] = make(map[Key]*harvest.Result)
	}
	if t.cfg.RunIQTree {
		res.Results[IQTree] = make(map[Key]*harvest.Result)
	}

	for _, ti := range t.trees {
		for _, ai := range t.alignments {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			k := Key{Tree: ti.Name, Alignment: ai.Name}
			if err := t.runExperiment(ctx, ti, ai, params, res); err != nil {
				return nil, fmt.Errorf("%s: %w", ExperimentName(ti, ai), err)
			}
			res.Keys = append(res.Keys, k)
		}
	}
	log.Infof("%s finished", t.Name)
	return res, nil
}

// runExperiment runs the tools for a single tree and alignment.
func (t *Trial) runExperiment(ctx context.Context, ti TreeInput, ai AlignmentInput,
	params model.Parameters, res *TrialResult) error {
	expName := ExperimentName(ti, ai)
	dir := filepath.Join(t.Dir, expName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	trueTree := t.trueTrees[ti.Name]
	treeFile, err := filepath.Abs(t.treeFile(ti.Name))
	if err != nil {
		return err
	}

	var msa string
	if ai.Simulated() {
		msa = SimulatedMSA
		if err := t.simulate(ctx, dir, expName, params, trueTree, ai.Sites); err != nil {
			return err
		}
	} else {
		msa = ai.Name + ".fasta"
		if err := os.WriteFile(filepath.Join(dir, msa), []byte(ai.Alignment.String()+"\n"), 0644); err != nil {
			return err
		}
	}

	k := Key{Tree: ti.Name, Alignment: ai.Name}

	if t.cfg.RunRD {
		done, err := t.done(expName, stageRD)
		if err != nil {
			return err
		}
		if !done {
			err := t.tools.RunRD(ctx, dir, RDArgs{
				MSA:         msa,
				Tree:        treeFile,
				Seed:        t.Seed,
				ModelParams: params.Subst.PermutedString(),
				FreqParams:  params.Freq.PermutedString(),
			})
			if err != nil {
				return err
			}
			if err := t.setDone(expName, stageRD); err != nil {
				return err
			}
		}
		r, err := harvest.ReadRD(dir, trueTree)
		if err != nil {
			return err
		}
		res.Results[RD][k] = r
	}

	if t.cfg.RunIQTree {
		done, err := t.done(expName, stageIQTree)
		if err != nil {
			return err
		}
		if !done {
			if err := t.tools.RunIQTree(ctx, dir, IQTreeArgs{MSA: msa, Tree: treeFile}); err != nil {
				return err
			}
			if err := t.setDone(expName, stageIQTree); err != nil {
				return err
			}
		}
		r, err := harvest.ReadIQTree(dir, msa, trueTree)
		if err != nil {
			return err
		}
		res.Results[IQTree][k] = r
	}
	return nil
}

// simulate writes the control file and runs the simulator.
func (t *Trial) simulate(ctx context.Context, dir, expName string, params model.Parameters,
	trueTree *tree.Tree, sites int) error {
	f, err := os.Create(filepath.Join(dir, ControlFile))
	if err != nil {
		return err
	}
	err = NewControl(t.Seed, params, trueTree.String(), sites).Write(f)
	if e := f.Close(); err == nil {
		err = e
	}
	if err != nil {
		return err
	}

	done, err := t.done(expName, stageSimulate)
	if err != nil || done {
		return err
	}
	if err := t.tools.Simulate(ctx, dir); err != nil {
		return err
	}
	return t.setDone(expName, stageSimulate)
}
