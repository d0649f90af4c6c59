package experiment

import (
	"fmt"
	"strings"
)

// Base26 encodes index with lowercase letters ("a", "b", ...). All the
// codes for indices below maximum have the same width.
func Base26(index, maximum int) string {
	width := 1
	for p := 26; p < maximum; p *= 26 {
		width++
	}
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte('a' + index%26)
		index /= 26
	}
	return string(b)
}

// RunName returns the trial directory name. Trial numbers are padded
// with zeros to the width of iters-1.
func RunName(i, iters int) string {
	width := 0
	for p := 1; p < iters; p *= 10 {
		width++
	}
	return fmt.Sprintf("run_%0*d", width, i)
}

// Key identifies an experiment within a trial.
type Key struct {
	Tree      string
	Alignment string
}

func (k Key) String() string {
	return k.Tree + "/" + k.Alignment
}

// ExperimentName returns the experiment directory name.
func ExperimentName(t TreeInput, a AlignmentInput) string {
	if a.Simulated() {
		return fmt.Sprintf("%stree_%dsites", t.Name, a.Sites)
	}
	return fmt.Sprintf("%stree_%salign", t.Name, a.Name)
}

// stageKey returns the checkpoint key of the stage.
func stageKey(parts ...string) string {
	return strings.Join(parts, "/")
}
