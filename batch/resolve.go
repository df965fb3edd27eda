package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sftypes "sheet2frames/type"

	"github.com/bmatcuk/doublestar/v4"
)

// Input is one resolved batch entry. Err is set when resolution already failed.
type Input struct {
	Path string
	Err  error
}

func isPattern(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}

// Resolve expands glob patterns (doublestar syntax, ** included) into sorted
// file lists. Arguments keep their order and duplicates are dropped. Literal
// paths pass through unchecked; a missing one fails later as InputNotFound.
func Resolve(args []string) []Input {
	var inputs []Input
	seen := make(map[string]bool)
	add := func(in Input) {
		key := filepath.Clean(in.Path)
		if seen[key] {
			return
		}
		seen[key] = true
		inputs = append(inputs, in)
	}

	for _, arg := range args {
		if !isPattern(arg) {
			add(Input{Path: arg})
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			add(Input{Path: arg, Err: fmt.Errorf("%w: bad pattern %q: %v", sftypes.ErrInputNotFound, arg, err)})
			continue
		}
		sort.Strings(matches)
		n := 0
		for _, m := range matches {
			if st, err := os.Stat(m); err != nil || !st.Mode().IsRegular() {
				continue
			}
			add(Input{Path: m})
			n++
		}
		if n == 0 {
			add(Input{Path: arg, Err: fmt.Errorf("%w: no files match %q", sftypes.ErrInputNotFound, arg)})
		}
	}
	return inputs
}

// BaseName is the file name without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// outputDir joins root and base and refuses anything that escapes root.
func outputDir(root, base string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolving output root %s: %v", sftypes.ErrWriteFailed, root, err)
	}
	dir := filepath.Join(absRoot, base)
	rel, err := filepath.Rel(absRoot, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: output folder for %q escapes %s", sftypes.ErrWriteFailed, base, root)
	}
	return filepath.Join(root, base), nil
}
