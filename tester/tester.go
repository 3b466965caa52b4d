package tester

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdtkit/sdt/driver"
	"github.com/sdtkit/sdt/spec"
)

// TestCase is one golden-file case: an input text and the exact listing
// the driver is expected to write for it, separated by a line holding
// only "---". Lines before the first separator describe the case.
type TestCase struct {
	Description string
	Source      []byte
	Output      []byte
}

// ParseTestCase reads a case file. The format is three sections divided
// by "---" lines: description, source, expected output.
func ParseTestCase(b []byte) (*TestCase, error) {
	var sections [][]string
	section := []string{}
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "---" {
			sections = append(sections, section)
			section = []string{}
			continue
		}
		section = append(section, line)
	}
	sections = append(sections, section)
	if len(sections) != 3 {
		return nil, fmt.Errorf("a test case must have three sections divided by \"---\" lines; found %v", len(sections))
	}

	join := func(lines []string) []byte {
		if len(lines) == 0 {
			return nil
		}
		return []byte(strings.Join(lines, "\n") + "\n")
	}
	return &TestCase{
		Description: strings.TrimSpace(strings.Join(sections[0], "\n")),
		Source:      join(sections[1]),
		Output:      join(sections[2]),
	}, nil
}

// LineDiff is one mismatching line between the expected and the actual
// driver output.
type LineDiff struct {
	Line     int
	Expected string
	Actual   string
}

type TestResult struct {
	TestCasePath string
	Error        error
	Diffs        []*LineDiff
}

func (r *TestResult) String() string {
	if r.Error != nil {
		const indent1 = "    "
		const indent2 = indent1 + indent1

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v:\n%v%v", r.TestCasePath, indent1, strings.Join(msgLines, "\n"+indent1))
		if len(r.Diffs) == 0 {
			return msg
		}
		var diffLines []string
		for _, diff := range r.Diffs {
			diffLines = append(diffLines, fmt.Sprintf("line %v:", diff.Line))
			diffLines = append(diffLines, fmt.Sprintf("%vexpected: %v", indent1, diff.Expected))
			diffLines = append(diffLines, fmt.Sprintf("%vactual:   %v", indent1, diff.Actual))
		}
		return fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(diffLines, "\n"+indent2))
	}
	return fmt.Sprintf("Passed %v", r.TestCasePath)
}

type TestCaseWithMetadata struct {
	TestCase *TestCase
	FilePath string
	Error    error
}

// ListTestCases collects every case file under testPath, which may name
// a single file or a directory walked recursively.
func ListTestCases(testPath string) []*TestCaseWithMetadata {
	fi, err := os.Stat(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	if !fi.IsDir() {
		c, err := parseTestCaseFile(testPath)
		return []*TestCaseWithMetadata{
			{
				TestCase: c,
				FilePath: testPath,
				Error:    err,
			},
		}
	}

	es, err := os.ReadDir(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	var cases []*TestCaseWithMetadata
	for _, e := range es {
		cs := ListTestCases(filepath.Join(testPath, e.Name()))
		cases = append(cases, cs...)
	}
	return cases
}

func parseTestCaseFile(testCasePath string) (*TestCase, error) {
	b, err := os.ReadFile(testCasePath)
	if err != nil {
		return nil, err
	}
	return ParseTestCase(b)
}

// Tester runs every case through the driver over one tables set and
// compares the listing the driver writes against the expected output.
type Tester struct {
	Tables *spec.Tables
	Cases  []*TestCaseWithMetadata

	// Listing makes the driver echo every source line, matching golden
	// outputs recorded with the full listing on.
	Listing bool
}

func (t *Tester) Run() []*TestResult {
	var rs []*TestResult
	for _, c := range t.Cases {
		rs = append(rs, t.runTest(c))
	}
	return rs
}

func (t *Tester) runTest(c *TestCaseWithMetadata) *TestResult {
	if c.Error != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        c.Error,
		}
	}

	var out bytes.Buffer
	opts := []driver.Option{driver.WithOutput(&out)}
	if t.Listing {
		opts = append(opts, driver.WithListing())
	}
	p := driver.New(t.Tables, bytes.NewReader(c.TestCase.Source), opts...)
	err := p.Parse()
	if err != nil {
		// An unrepairable syntax error still produces a listing; the
		// case fails only when that listing is not the expected one.
		fmt.Fprintf(&out, "%v\n", err)
	}

	diffs := diffLines(c.TestCase.Output, out.Bytes())
	if len(diffs) > 0 {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        fmt.Errorf("output mismatch"),
			Diffs:        diffs,
		}
	}
	return &TestResult{
		TestCasePath: c.FilePath,
	}
}

func diffLines(expected, actual []byte) []*LineDiff {
	exp := strings.Split(string(expected), "\n")
	act := strings.Split(string(actual), "\n")
	n := len(exp)
	if len(act) > n {
		n = len(act)
	}
	var diffs []*LineDiff
	for i := 0; i < n; i++ {
		var e, a string
		if i < len(exp) {
			e = exp[i]
		}
		if i < len(act) {
			a = act[i]
		}
		if e != a {
			diffs = append(diffs, &LineDiff{Line: i + 1, Expected: e, Actual: a})
		}
	}
	return diffs
}
