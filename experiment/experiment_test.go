package experiment

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"bitbucket.org/Davydov/rootbench/checkpoint"
	"bitbucket.org/Davydov/rootbench/model"
)

const userTree = "((A:1,B:1):1,(C:1,D:1):1);\n"

const userAlignment = `>A
ACGTACGTAC
>B
ACGTACGTAA
>C
ACGAACGTAC
>D
ACGAACGTCC
`

const fakeIndelible = `#!/bin/sh
test -f control.txt || exit 1
printf '4 10\nA ACGTACGTAC\n' > seqs_TRUE.phy
`

const fakeRD = `#!/bin/sh
echo rd >> ../../calls
while [ $# -gt 0 ]; do
  case "$1" in
    --tree) tree="$2"; shift ;;
  esac
  shift
done
echo "Optimizing"
echo "Final likelihood: -10.5"
cat "$tree"
echo "Inference took: 1.5s"
`

const fakeIQTree = `#!/bin/sh
echo iqtree >> ../../calls
while [ $# -gt 0 ]; do
  case "$1" in
    -s) msa="$2"; shift ;;
    -g) tree="$2"; shift ;;
  esac
  shift
done
cp "$tree" "$msa.treefile"
printf 'Log-likelihood of the tree: -11.25 (s.e. 1.0)\nTotal wall-clock time used: 0.25 sec (0h:0m:0s)\n' > "$msa.iqtree"
`

const failingTool = `#!/bin/sh
echo "something went wrong" >&2
exit 1
`

func writeFile(tst *testing.T, fn, data string, perm os.FileMode) string {
	if err := os.WriteFile(fn, []byte(data), perm); err != nil {
		tst.Fatal(err)
	}
	return fn
}

// testConfig creates configuration with fake tools.
func testConfig(tst *testing.T) *Config {
	if runtime.GOOS == "windows" {
		tst.Skip("shell scripts are required")
	}
	dir := tst.TempDir()
	bin := filepath.Join(dir, "bin")
	if err := os.Mkdir(bin, 0755); err != nil {
		tst.Fatal(err)
	}
	cfg := NewConfig()
	cfg.Path = filepath.Join(dir, "exp")
	cfg.Trees = []string{"5", writeFile(tst, filepath.Join(dir, "trees.nwk"), userTree, 0644)}
	cfg.Alignments = []string{"20", writeFile(tst, filepath.Join(dir, "ali.fasta"), userAlignment, 0644)}
	cfg.Iters = 2
	cfg.Procs = 2
	cfg.Seed = 1
	cfg.IndelibleBinary = writeFile(tst, filepath.Join(bin, "indelible"), fakeIndelible, 0755)
	cfg.RDBinary = writeFile(tst, filepath.Join(bin, "rd"), fakeRD, 0755)
	cfg.IQTreeBinary = writeFile(tst, filepath.Join(bin, "iqtree"), fakeIQTree, 0755)
	return cfg
}

func countCalls(tst *testing.T, cfg *Config) int {
	b, err := os.ReadFile(filepath.Join(cfg.Path, "calls"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		tst.Fatal(err)
	}
	return strings.Count(string(b), "\n")
}

func TestBase26(tst *testing.T) {
	data := []struct {
		index, maximum int
		code           string
	}{
		{0, 1, "a"},
		{0, 3, "a"},
		{2, 3, "c"},
		{25, 26, "z"},
		{0, 27, "aa"},
		{26, 27, "ba"},
		{27, 100, "bb"},
		{0, 677, "aaa"},
	}
	for _, d := range data {
		if c := Base26(d.index, d.maximum); c != d.code {
			tst.Errorf("Base26(%d, %d) = %q, expected %q", d.index, d.maximum, c, d.code)
		}
	}
}

func TestRunName(tst *testing.T) {
	data := []struct {
		i, iters int
		name     string
	}{
		{0, 1, "run_0"},
		{3, 10, "run_3"},
		{3, 11, "run_03"},
		{99, 100, "run_99"},
		{5, 1000, "run_005"},
	}
	for _, d := range data {
		if n := RunName(d.i, d.iters); n != d.name {
			tst.Errorf("RunName(%d, %d) = %q, expected %q", d.i, d.iters, n, d.name)
		}
	}
}

func TestValidate(tst *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.Path = "exp"
		cfg.Trees = []string{"10"}
		cfg.Alignments = []string{"100"}
		return cfg
	}
	if err := valid().Validate(); err != nil {
		tst.Error("Valid config:", err)
	}

	modify := []func(*Config){
		func(c *Config) { c.Path = "" },
		func(c *Config) { c.Trees = nil },
		func(c *Config) { c.Alignments = nil },
		func(c *Config) { c.Iters = 0 },
		func(c *Config) { c.Procs = 0 },
		func(c *Config) { c.ATol = 0 },
		func(c *Config) { c.Factor = -1 },
		func(c *Config) { c.RDTemplate = "{{.MSA" },
		func(c *Config) { c.IQTreeTemplate = "{{end}}" },
	}
	for i, m := range modify {
		cfg := valid()
		m(cfg)
		if err := cfg.Validate(); err == nil {
			tst.Error("Expected validation error", i)
		}
	}
}

func TestLoadInputs(tst *testing.T) {
	dir := tst.TempDir()
	trees := writeFile(tst, filepath.Join(dir, "trees.nwk"), userTree+"\n(A:1,(B:1,C:1):1);\n", 0644)
	ti, err := LoadTrees([]string{"10", trees})
	if err != nil {
		tst.Fatal(err)
	}
	if len(ti) != 3 {
		tst.Fatal("Wrong number of trees:", len(ti))
	}
	if ti[0].Name != "10" || !ti[0].Random() || ti[0].Leaves != 10 {
		tst.Error("Wrong random tree input:", ti[0])
	}
	if ti[1].Name != "a" || ti[1].Random() || ti[1].Leaves != 4 {
		tst.Error("Wrong user tree input:", ti[1].Name, ti[1].Leaves)
	}
	if ti[2].Name != "b" || ti[2].Leaves != 3 {
		tst.Error("Wrong user tree input:", ti[2].Name, ti[2].Leaves)
	}

	for _, specs := range [][]string{{"2"}, {"5", "5"}, {filepath.Join(dir, "missing.nwk")}} {
		if _, err := LoadTrees(specs); err == nil {
			tst.Error("Expected error for", specs)
		}
	}
	bad := writeFile(tst, filepath.Join(dir, "bad.nwk"), "((A,B),(A,C));\n", 0644)
	if _, err := LoadTrees([]string{bad}); err == nil {
		tst.Error("Expected error for duplicate leaves")
	}

	ali := writeFile(tst, filepath.Join(dir, "ali.fasta"), userAlignment, 0644)
	ai, err := LoadAlignments([]string{"100", ali})
	if err != nil {
		tst.Fatal(err)
	}
	if ai[0].Name != "100" || !ai[0].Simulated() || ai[0].Sites != 100 {
		tst.Error("Wrong simulated alignment input:", ai[0])
	}
	if ai[1].Name != "a" || ai[1].Simulated() || ai[1].Sites != 10 || len(ai[1].Alignment) != 4 {
		tst.Error("Wrong user alignment input:", ai[1].Name, ai[1].Sites)
	}
	if ExperimentName(ti[0], ai[0]) != "10tree_100sites" || ExperimentName(ti[1], ai[1]) != "atree_aalign" {
		tst.Error("Wrong experiment names")
	}
	if _, err := LoadAlignments([]string{"0"}); err == nil {
		tst.Error("Expected error for zero sites")
	}
}

func TestRandomTree(tst *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, n := range []int{3, 4, 10, 50} {
		t, err := RandomTree(n, rng)
		if err != nil {
			tst.Fatal(err)
		}
		if t.NLeaves() != n {
			tst.Error("Wrong number of leaves:", t.NLeaves(), n)
		}
		if len(t.ChildNodes()) != 3 {
			tst.Error("Tree should be unrooted:", t)
		}
		for node := range t.Walker(nil) {
			if node.BranchLength < minBrLen {
				tst.Error("Branch length too short:", node.BranchLength)
			}
		}
		if err := t.ValidateLeaves(); err != nil {
			tst.Error(err)
		}
	}
}

func TestControl(tst *testing.T) {
	p := model.NewParameters(42)
	var b bytes.Buffer
	if err := NewControl(42, p, "(t1:0.1,t2:0.2,t3:0.3);\n", 100).Write(&b); err != nil {
		tst.Fatal(err)
	}
	s := b.String()
	for _, line := range []string{
		"[TYPE] NUCLEOTIDE 1",
		"  [randomseed] 42",
		"  [submodel] UNREST " + p.Subst.NativeString(),
		"  [statefreq] " + p.Freq.NativeString(),
		"[TREE] t1 (t1:0.1,t2:0.2,t3:0.3);",
		"  [t1 m1 100]",
		"[EVOLVE] p1 1 seqs",
	} {
		if !strings.Contains(s, line+"\n") {
			tst.Errorf("Control file has no line %q:\n%s", line, s)
		}
	}
}

func TestCommand(tst *testing.T) {
	cfg := NewConfig()
	tools, err := NewTools(cfg)
	if err != nil {
		tst.Fatal(err)
	}
	args, err := command(tools.rd, RDArgs{
		Binary: "rd", MSA: "seqs_TRUE.phy", Tree: "/x/5.tree", Seed: 7,
		ATol: 1e-4, Factor: 1e7, BFGSTol: 1e-4,
	})
	if err != nil {
		tst.Fatal(err)
	}
	exp := "rd --msa seqs_TRUE.phy --tree /x/5.tree --states 4 --seed 7 --force --atol 0.0001 --factor 1e+07 --bfgstol 0.0001"
	if s := strings.Join(args, " "); s != exp {
		tst.Error("Wrong rd command:", s)
	}

	args, err = command(tools.iqtree, IQTreeArgs{Binary: "iqtree", MSA: "a.fasta", Tree: "/x/a.tree"})
	if err != nil {
		tst.Fatal(err)
	}
	if s := strings.Join(args, " "); s != "iqtree -m 12.12 -s a.fasta -g /x/a.tree" {
		tst.Error("Wrong iqtree command:", s)
	}

	cfg.RDTemplate = "{{.Binary}} --params {{.ModelParams}} --freqs {{.FreqParams}}"
	tools, err = NewTools(cfg)
	if err != nil {
		tst.Fatal(err)
	}
	args, err = command(tools.rd, RDArgs{Binary: "rd", ModelParams: "1,2", FreqParams: "0.5,0.5"})
	if err != nil {
		tst.Fatal(err)
	}
	if s := strings.Join(args, " "); s != "rd --params 1,2 --freqs 0.5,0.5" {
		tst.Error("Wrong custom rd command:", s)
	}
}

func TestRunAll(tst *testing.T) {
	cfg := testConfig(tst)
	store, err := checkpoint.Open(filepath.Join(filepath.Dir(cfg.Path), "checkpoint.db"))
	if err != nil {
		tst.Fatal(err)
	}
	defer store.Close()

	if err := cfg.CheckTools(true); err != nil {
		tst.Fatal(err)
	}

	e, err := New(cfg, store)
	if err != nil {
		tst.Fatal(err)
	}
	if !e.Simulate() {
		tst.Error("Should simulate alignments")
	}
	trials, err := e.Trials()
	if err != nil {
		tst.Fatal(err)
	}
	if len(trials) != 2 || trials[0].Name != "run_0" || trials[1].Name != "run_1" {
		tst.Fatal("Wrong trials")
	}

	progress := make(chan Progress, 10)
	results, err := e.RunAll(context.Background(), trials, progress)
	if err != nil {
		tst.Fatal(err)
	}
	n := 0
	for p := range progress {
		n++
		if p.Total != 2 || p.Done != n {
			tst.Error("Wrong progress:", p)
		}
	}
	if n != 2 {
		tst.Error("Wrong number of progress reports:", n)
	}

	// 2 trials, 2 trees, 2 alignments, 2 methods
	if c := countCalls(tst, cfg); c != 16 {
		tst.Error("Wrong number of tool calls:", c)
	}

	for _, r := range results {
		if len(r.Keys) != 4 {
			tst.Error("Wrong number of experiments:", len(r.Keys))
		}
		for _, k := range r.Keys {
			rd, ok := r.Result(RD, k)
			if !ok {
				tst.Fatal("No rd result for", k)
			}
			if rd.LnL != -10.5 || rd.Time != 1.5 || rd.RootDistance != 0 || rd.PathDistance != 0 {
				tst.Error("Wrong rd result:", k, rd)
			}
			iq, ok := r.Result(IQTree, k)
			if !ok {
				tst.Fatal("No iqtree result for", k)
			}
			if iq.LnL != -11.25 || iq.Time != 0.25 {
				tst.Error("Wrong iqtree result:", k, iq)
			}
		}
	}

	for _, fn := range []string{
		"run_0/5.tree",
		"run_0/a.tree",
		"run_0/subst.model",
		"run_0/freqs.model",
		"run_1/5tree_20sites/control.txt",
		"run_1/5tree_20sites/seqs_TRUE.phy",
		"run_1/atree_aalign/a.fasta",
		"run_1/atree_aalign/rd_output",
		"run_1/atree_aalign/a.fasta.treefile",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Path, fn)); err != nil {
			tst.Error("Missing file:", fn)
		}
	}

	// resume: nothing is run again
	e2, err := New(cfg, store)
	if err != nil {
		tst.Fatal(err)
	}
	trials2, err := e2.Trials()
	if err != nil {
		tst.Fatal(err)
	}
	for i := range trials {
		if trials[i].Seed != trials2[i].Seed {
			tst.Error("Seed changed after resume")
		}
	}
	if _, err := e2.RunAll(context.Background(), trials2, nil); err != nil {
		tst.Fatal(err)
	}
	if c := countCalls(tst, cfg); c != 16 {
		tst.Error("Tools were run again:", c)
	}

	// root placements on the user tree
	counts, err := e.MapRoots(results)
	if err != nil {
		tst.Fatal(err)
	}
	if len(counts) != 2 {
		tst.Fatal("Wrong number of mapped trees:", len(counts))
	}
	user := e.Trees[1].Tree
	c := counts[Key{Tree: "a", Alignment: "20"}]
	// inferred trees are (A,B,(C,D)), A is preferred
	if n := c.Count(RD, user.FindLeaf("A").Id); n != 2 {
		tst.Error("Wrong rd count:", n)
	}
	if n := c.Count(IQTree, user.FindLeaf("A").Id); n != 2 {
		tst.Error("Wrong iqtree count:", n)
	}
	files, err := e.WriteMappedTrees(counts)
	if err != nil {
		tst.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(files[1]) != "atree_aalign_mapped_tree" {
		tst.Error("Wrong mapped tree files:", files)
	}

	var b bytes.Buffer
	if err := e.WriteTreeMap(&b); err != nil {
		tst.Fatal(err)
	}
	if b.String() != "a: ((A:1.000000,B:1.000000):1.000000,(C:1.000000,D:1.000000):1.000000);\n" {
		tst.Error("Wrong tree map:", b.String())
	}
}

func TestSeeds(tst *testing.T) {
	cfg := testConfig(tst)
	e, err := New(cfg, nil)
	if err != nil {
		tst.Fatal(err)
	}
	t1, err := e.Trials()
	if err != nil {
		tst.Fatal(err)
	}

	cfg.Path = filepath.Join(tst.TempDir(), "exp2")
	e, err = New(cfg, nil)
	if err != nil {
		tst.Fatal(err)
	}
	t2, err := e.Trials()
	if err != nil {
		tst.Fatal(err)
	}
	if t1[0].Seed != t2[0].Seed || t1[1].Seed != t2[1].Seed {
		tst.Error("Same master seed gives different trial seeds")
	}
	if t1[0].Seed == t1[1].Seed {
		tst.Error("Trials have the same seed")
	}
	// random trees depend only on the seed
	a, _ := os.ReadFile(filepath.Join(t1[0].Dir, "5.tree"))
	b, _ := os.ReadFile(filepath.Join(t2[0].Dir, "5.tree"))
	if len(a) == 0 || !bytes.Equal(a, b) {
		tst.Error("Random trees differ for the same seed")
	}
}

func TestRunAllFailure(tst *testing.T) {
	cfg := testConfig(tst)
	cfg.RDBinary = writeFile(tst, filepath.Join(filepath.Dir(cfg.Path), "bin", "rd"), failingTool, 0755)
	e, err := New(cfg, nil)
	if err != nil {
		tst.Fatal(err)
	}
	trials, err := e.Trials()
	if err != nil {
		tst.Fatal(err)
	}
	_, err = e.RunAll(context.Background(), trials, nil)
	if err == nil {
		tst.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "run_") {
		tst.Error("Error should name the trial:", err)
	}
}

func TestRunAllCancel(tst *testing.T) {
	cfg := testConfig(tst)
	e, err := New(cfg, nil)
	if err != nil {
		tst.Fatal(err)
	}
	trials, err := e.Trials()
	if err != nil {
		tst.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.RunAll(ctx, trials, nil); err == nil {
		tst.Error("Expected error for canceled context")
	}
	if c := countCalls(tst, cfg); c != 0 {
		tst.Error("Tools were run after cancel:", c)
	}
}
