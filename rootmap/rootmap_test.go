package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(tst *testing.T, name, data string) string {
	fn := filepath.Join(tst.TempDir(), name)
	if err := os.WriteFile(fn, []byte(data), 0644); err != nil {
		tst.Fatal(err)
	}
	return fn
}

func TestMapRoots(tst *testing.T) {
	trueTrees, err := readTrees(writeFile(tst, "true.nwk", "((A:1,B:1):1,(C:1,D:1):1);\n"))
	if err != nil {
		tst.Fatal(err)
	}
	inferred, err := readTrees(writeFile(tst, "inferred.nwk",
		"((A:1,B:1):1,(C:1,D:1):1);\n(A:1,(B:1,(C:1,D:1):1):1);\n"))
	if err != nil {
		tst.Fatal(err)
	}
	if len(inferred) != 2 {
		tst.Fatal("Wrong number of inferred trees:", len(inferred))
	}

	var b bytes.Buffer
	if err := mapRoots(&b, trueTrees[0], inferred, "test"); err != nil {
		tst.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 3 {
		tst.Fatal("Wrong output:", b.String())
	}
	if lines[0] != "1\tnode=0\troot_distance=0\tpath_distance=0" {
		tst.Error("Wrong identity placement:", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2\t") {
		tst.Error("Wrong second placement:", lines[1])
	}
	if !strings.HasSuffix(lines[2], "[&&NHX:root_placement_test=1];") {
		tst.Error("Wrong mapped tree:", lines[2])
	}
	if !strings.Contains(lines[2], "A[&&NHX:root_placement_test=1]") {
		tst.Error("Leaf A should receive a root:", lines[2])
	}
}

func TestMapRootsMissingLeaf(tst *testing.T) {
	trueTrees, err := readTrees(writeFile(tst, "true.nwk", "((A:1,B:1):1,(C:1,D:1):1);"))
	if err != nil {
		tst.Fatal(err)
	}
	inferred, err := readTrees(writeFile(tst, "inferred.nwk", "((A:1,X:1):1,(C:1,D:1):1);"))
	if err != nil {
		tst.Fatal(err)
	}
	var b bytes.Buffer
	if err := mapRoots(&b, trueTrees[0], inferred, "test"); err == nil {
		tst.Error("Expected an error for a missing leaf")
	}
}

func TestReadTreesEmpty(tst *testing.T) {
	if _, err := readTrees(writeFile(tst, "empty.nwk", "")); err == nil {
		tst.Error("Expected an error for an empty file")
	}
}
