// Package summary aggregates results of the trials.
package summary

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/rootbench/experiment"
	"bitbucket.org/Davydov/rootbench/harvest"
)

var log = logging.MustGetLogger("summary")

// ResultsFile is the default name of the summary table.
const ResultsFile = "test_results"

// Methods are all the methods in the order of the table columns.
var Methods = []string{experiment.RD, experiment.IQTree}

// prefixes are method prefixes of the column names.
var prefixes = map[string]string{
	experiment.RD:     "rd",
	experiment.IQTree: "iq",
}

// column is a statistic of a value in the table.
type column struct {
	name  string
	value func(*MethodStats) float64
}

var columns = []column{
	{"time_mean", func(m *MethodStats) float64 { return m.Time.Mean }},
	{"time_median", func(m *MethodStats) float64 { return m.Time.Median }},
	{"time_std", func(m *MethodStats) float64 { return m.Time.Std }},
	{"root_distance_mean", func(m *MethodStats) float64 { return m.RootDistance.Mean }},
	{"root_distance_median", func(m *MethodStats) float64 { return m.RootDistance.Median }},
	{"root_distance_std", func(m *MethodStats) float64 { return m.RootDistance.Std }},
	{"path_distance_mean", func(m *MethodStats) float64 { return m.PathDistance.Mean }},
	{"path_distance_median", func(m *MethodStats) float64 { return m.PathDistance.Median }},
	{"path_distance_std", func(m *MethodStats) float64 { return m.PathDistance.Std }},
}

// MethodStats stores statistics of a method over all the trials.
type MethodStats struct {
	Time                   Stats `json:"time"`
	LnL                    Stats `json:"lnL"`
	RootDistance           Stats `json:"rootDistance"`
	NormalizedRootDistance Stats `json:"normalizedRootDistance"`
	PathDistance           Stats `json:"pathDistance"`
	NormalizedPathDistance Stats `json:"normalizedPathDistance"`

	rootDistances []float64
}

// newMethodStats computes statistics from the results.
func newMethodStats(results []*harvest.Result) *MethodStats {
	n := len(results)
	time := make([]float64, n)
	lnL := make([]float64, n)
	rd := make([]float64, n)
	nrd := make([]float64, n)
	pd := make([]float64, n)
	npd := make([]float64, n)
	for i, r := range results {
		time[i] = r.Time
		lnL[i] = r.LnL
		rd[i] = float64(r.RootDistance)
		nrd[i] = r.NormalizedRootDistance
		pd[i] = r.PathDistance
		npd[i] = r.NormalizedPathDistance
	}
	return &MethodStats{
		Time:                   Compute(time),
		LnL:                    Compute(lnL),
		RootDistance:           Compute(rd),
		NormalizedRootDistance: Compute(nrd),
		PathDistance:           Compute(pd),
		NormalizedPathDistance: Compute(npd),
		rootDistances:          rd,
	}
}

// Experiment stores statistics for a tree and an alignment.
type Experiment struct {
	Tree      string `json:"tree"`
	Alignment string `json:"alignment"`
	// Methods has statistics of the methods that ran in every trial.
	Methods map[string]*MethodStats `json:"methods"`
}

// Summary stores statistics of all the experiments.
type Summary struct {
	Experiments []*Experiment
}

// New aggregates trial results. Experiments are sorted by tree and
// alignment names.
func New(results []*experiment.TrialResult) *Summary {
	keySet := make(map[experiment.Key]bool)
	for _, r := range results {
		for _, k := range r.Keys {
			keySet[k] = true
		}
	}
	keys := make([]experiment.Key, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Tree != keys[j].Tree {
			return keys[i].Tree < keys[j].Tree
		}
		return keys[i].Alignment < keys[j].Alignment
	})

	s := &Summary{Experiments: make([]*Experiment, 0, len(keys))}
	for _, k := range keys {
		e := &Experiment{
			Tree:      k.Tree,
			Alignment: k.Alignment,
			Methods:   make(map[string]*MethodStats),
		}
	methods:
		for _, m := range Methods {
			mres := make([]*harvest.Result, 0, len(results))
			for _, r := range results {
				res, ok := r.Result(m, k)
				if !ok {
					log.Debugf("%s: no %s result for %s", r.Name, m, k)
					continue methods
				}
				mres = append(mres, res)
			}
			if len(mres) > 0 {
				e.Methods[m] = newMethodStats(mres)
			}
		}
		s.Experiments = append(s.Experiments, e)
	}
	return s
}

// Header returns the table header.
func Header() []string {
	h := []string{"tree", "alignment"}
	for _, c := range columns {
		for _, m := range Methods {
			h = append(h, prefixes[m]+"_"+c.name)
		}
	}
	return h
}

// Rows returns the table rows. Methods which didn't run give empty
// cells.
func (s *Summary) Rows() [][]string {
	rows := make([][]string, 0, len(s.Experiments))
	for _, e := range s.Experiments {
		row := []string{e.Tree, e.Alignment}
		for _, c := range columns {
			for _, m := range Methods {
				ms, ok := e.Methods[m]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, strconv.FormatFloat(c.value(ms), 'g', -1, 64))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the table.
func (s *Summary) WriteCSV(w io.Writer) error {
	tab := csv.NewWriter(w)
	if err := tab.Write(Header()); err != nil {
		return err
	}
	if err := tab.WriteAll(s.Rows()); err != nil {
		return err
	}
	tab.Flush()
	return tab.Error()
}

// Write writes the table to a file.
func (s *Summary) Write(fn string) (err error) {
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
	return s.WriteCSV(f)
}

// Report is the JSON summary of the run.
type Report struct {
	// Version stores the program version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the master seed, negative if trial seeds are random.
	Seed int64 `json:"seed"`
	// Seeds are the trial seeds.
	Seeds map[string]uint64 `json:"seeds"`
	// Procs is the number of processes used.
	Procs int `json:"procs"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
	// Experiments are statistics for every tree and alignment.
	Experiments []*Experiment `json:"experiments"`
}

// WriteJSON writes the report to a file.
func (r *Report) WriteJSON(fn string) error {
	j, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	log.Debug(string(j))
	return os.WriteFile(fn, j, 0644)
}
