package experiment

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"bitbucket.org/Davydov/rootbench/checkpoint"
	"bitbucket.org/Davydov/rootbench/placement"
)

// Output file names in the experiment root.
const (
	TreeMapFile      = "tree_map"
	mappedTreeSuffix = "_mapped_tree"
)

// Experiment stores the inputs shared by all the trials.
type Experiment struct {
	Trees      []TreeInput
	Alignments []AlignmentInput

	cfg   *Config
	tools *Tools
	store *checkpoint.Store
}

// Progress is sent after every finished trial.
type Progress struct {
	Trial string
	Done  int
	Total int
}

// New validates the configuration and loads trees and alignments.
// store can be nil-backed (see checkpoint.NewStore).
func New(cfg *Config, store *checkpoint.Store) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	trees, err := LoadTrees(cfg.Trees)
	if err != nil {
		return nil, err
	}
	aligns, err := LoadAlignments(cfg.Alignments)
	if err != nil {
		return nil, err
	}
	tools, err := NewTools(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = checkpoint.NewStore(nil)
	}
	log.Infof("%d tree(s), %d alignment(s), %d iteration(s)", len(trees), len(aligns), cfg.Iters)
	return &Experiment{
		Trees:      trees,
		Alignments: aligns,
		cfg:        cfg,
		tools:      tools,
		store:      store,
	}, nil
}

// Simulate returns true if any alignment has to be simulated.
func (e *Experiment) Simulate() bool {
	return simulate(e.Alignments)
}

// Trials creates trial directories, seeds and true trees. Seeds saved
// in the checkpoint are reused. Without a saved seed, trial seeds are
// drawn from the master seed, or at random if the master seed is
// negative.
func (e *Experiment) Trials() ([]*Trial, error) {
	if err := os.MkdirAll(e.cfg.Path, 0755); err != nil {
		return nil, err
	}
	var master *rand.Rand
	if e.cfg.Seed >= 0 {
		master = rand.New(rand.NewPCG(uint64(e.cfg.Seed), 0))
	}

	trials := make([]*Trial, e.cfg.Iters)
	for i := range trials {
		name := RunName(i, e.cfg.Iters)
		dir := filepath.Join(e.cfg.Path, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}

		// always draw, so seeds don't depend on the checkpoint
		var seed uint64
		if master != nil {
			seed = uint64(master.Uint32())
		} else {
			seed = uint64(rand.Uint32())
		}
		saved, ok, err := e.store.Seed(name)
		if err != nil {
			return nil, err
		}
		if ok {
			seed = saved
		} else if err := e.store.SetSeed(name, seed); err != nil {
			return nil, err
		}
		log.Debugf("%s: seed=%d", name, seed)

		t := &Trial{
			Index:      i,
			Name:       name,
			Dir:        dir,
			Seed:       seed,
			trees:      e.Trees,
			alignments: e.Alignments,
			cfg:        e.cfg,
			tools:      e.tools,
			store:      e.store,
		}
		if err := t.prepareTrees(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		trials[i] = t
	}
	return trials, nil
}

// RunAll runs the trials using a fixed number of workers. The first
// error cancels the remaining trials. Progress is reported to the
// channel (if not nil), which is closed in the end.
func (e *Experiment) RunAll(ctx context.Context, trials []*Trial, progress chan<- Progress) ([]*TrialResult, error) {
	if progress != nil {
		defer close(progress)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Procs)

	results := make([]*TrialResult, len(trials))
	var mu sync.Mutex
	done := 0

	for i, t := range trials {
		g.Go(func() error {
			r, err := t.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			results[i] = r
			if progress == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			select {
			case progress <- Progress{Trial: t.Name, Done: done, Total: len(trials)}:
			case <-ctx.Done():
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// WriteTreeMap writes names of the user trees with the trees.
func (e *Experiment) WriteTreeMap(w io.Writer) error {
	for _, t := range e.Trees {
		if t.Random() {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", t.Name, t.Tree); err != nil {
			return err
		}
	}
	return nil
}

// MapRoots counts where inferred roots are placed on every user tree
// for every alignment. Random trees differ between trials and are
// skipped.
func (e *Experiment) MapRoots(results []*TrialResult) (map[Key]*placement.Counts, error) {
	var methods []string
	if e.cfg.RunRD {
		methods = append(methods, RD)
	}
	if e.cfg.RunIQTree {
		methods = append(methods, IQTree)
	}

	counts := make(map[Key]*placement.Counts)
	for _, ti := range e.Trees {
		if ti.Random() {
			continue
		}
		for _, ai := range e.Alignments {
			k := Key{Tree: ti.Name, Alignment: ai.Name}
			c := placement.NewCounts(ti.Tree, methods...)
			for _, r := range results {
				for _, m := range methods {
					res, ok := r.Result(m, k)
					if !ok {
						continue
					}
					if _, err := c.Add(m, res.Tree); err != nil {
						return nil, fmt.Errorf("%s %s %s: %w", r.Name, k, m, err)
					}
				}
			}
			counts[k] = c
		}
	}
	return counts, nil
}

// WriteMappedTrees writes the user trees annotated with root placement
// counts to the experiment root.
func (e *Experiment) WriteMappedTrees(counts map[Key]*placement.Counts) ([]string, error) {
	var files []string
	for _, ti := range e.Trees {
		for _, ai := range e.Alignments {
			c, ok := counts[Key{Tree: ti.Name, Alignment: ai.Name}]
			if !ok {
				continue
			}
			fn := filepath.Join(e.cfg.Path, ExperimentName(ti, ai)+mappedTreeSuffix)
			if err := os.WriteFile(fn, []byte(c.Tree()+"\n"), 0644); err != nil {
				return nil, err
			}
			files = append(files, fn)
		}
	}
	return files, nil
}
