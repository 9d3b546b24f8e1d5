// Package compare implements comparison mode: diffing a run's dump
// against a previously captured expected dump, line by line, and
// aggregating disagreements into a single errs.ComparisonError. Grounded
// on go_tools/compare/comp.go's diff-and-report shape (compareCG/
// compareQueries collecting *Diff structs into a package-level slice,
// then printing them as one batch); rebound here from two live
// pointer.Result objects to one dump's text against another's, since this
// engine's comparison mode is expected-file-driven rather than
// dual-algorithm cross-checking.
package compare

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/result"
)

// line is one parsed "<pointer> -> [<obj1>,<obj2>,...]" dump line.
type line struct {
	pointer string
	objects []string
}

// parse reads dump-formatted text into pointer -> sorted-objects, skipping
// blank lines and any trailing taint-flow section (which compare mode
// does not diff).
func parse(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "Detected ") || strings.HasPrefix(text, "TaintFlow{") {
			continue
		}
		idx := strings.Index(text, " -> ")
		if idx < 0 {
			return nil, errs.Configf("compare: malformed dump line %q", text)
		}
		l := line{pointer: text[:idx]}
		objs := strings.TrimSuffix(strings.TrimPrefix(text[idx+4:], "["), "]")
		if objs != "" {
			l.objects = strings.Split(objs, ",")
		}
		sort.Strings(l.objects)
		out[l.pointer] = l.objects
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Run diffs the dump of r against the expected text read from expected,
// returning a *errs.ComparisonError (Kind KindComparison) listing every
// disagreement, or nil if the two agree exactly.
func Run(expected io.Reader, r *result.Result) error {
	var buf bytes.Buffer
	result.Dump(&buf, r)

	given, err := parse(&buf)
	if err != nil {
		return err
	}
	want, err := parse(expected)
	if err != nil {
		return err
	}

	var mismatches []errs.Mismatch
	seen := make(map[string]bool)

	for pointer, wantObjs := range want {
		seen[pointer] = true
		givenObjs, ok := given[pointer]
		if !ok {
			mismatches = append(mismatches, errs.Mismatch{Pointer: pointer, Expected: wantObjs, Given: nil})
			continue
		}
		if !equalSets(wantObjs, givenObjs) {
			mismatches = append(mismatches, errs.Mismatch{Pointer: pointer, Expected: wantObjs, Given: givenObjs})
		}
	}
	for pointer, givenObjs := range given {
		if seen[pointer] {
			continue
		}
		mismatches = append(mismatches, errs.Mismatch{Pointer: pointer, Expected: nil, Given: givenObjs})
	}

	if len(mismatches) == 0 {
		return nil
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Pointer < mismatches[j].Pointer })
	return &errs.ComparisonError{Mismatches: mismatches}
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Report renders err (expected to be *errs.ComparisonError, but handled
// gracefully otherwise) to w in the one-mismatch-per-line form the
// scenario tests assert on.
func Report(w io.Writer, err error) {
	ce, ok := err.(*errs.ComparisonError)
	if !ok {
		fmt.Fprintln(w, err)
		return
	}
	for _, m := range ce.Mismatches {
		fmt.Fprintln(w, m.String())
	}
}
