// Package doctor provides health checks for a running nexus deployment:
// that the schema file parses and is acyclic, that the configured store
// is reachable, that the change log is readable (reporting its oldest
// entry's age), and that recent writes name types and relations the schema
// defines. Checks run directly against store.Store and
// schema.Model rather than any generated SQL, since this engine has no
// generated SQL functions to inspect.
package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/schema/parser"
	"github.com/nexi-lab/nexus-sub005/store"
)

// Status represents the result of a health check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Category string
	Name     string
	Status   Status
	Message  string
	Details  string
	FixHint  string
}

// Report holds every check result plus summary counts.
type Report struct {
	Checks   []CheckResult
	Passed   int
	Warnings int
	Errors   int
}

func (r *Report) AddCheck(c CheckResult) {
	r.Checks = append(r.Checks, c)
	switch c.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var order []string
	for _, c := range r.Checks {
		if _, ok := categories[c.Category]; !ok {
			order = append(order, c.Category)
		}
		categories[c.Category] = append(categories[c.Category], c)
	}

	for _, cat := range order {
		fmt.Fprintf(w, "\n%s\n", cat)
		for _, c := range categories[cat] {
			fmt.Fprintf(w, "  %s %s\n", c.Status.Symbol(), c.Message)
			if verbose && c.Details != "" {
				for _, line := range strings.Split(c.Details, "\n") {
					fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if c.Status != StatusPass && c.FixHint != "" {
				fmt.Fprintf(w, "      Fix: %s\n", c.FixHint)
			}
		}
	}

	fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n", r.Passed, r.Warnings, r.Errors)
}

func (r *Report) HasErrors() bool { return r.Errors > 0 }

// Doctor runs health checks against a schema file and a live store.
type Doctor struct {
	store      store.Store
	schemaPath string
	tenant     string
}

func New(s store.Store, schemaPath, tenant string) *Doctor {
	return &Doctor{store: s, schemaPath: schemaPath, tenant: tenant}
}

func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	model := d.checkSchema(report)
	d.checkStoreConnectivity(ctx, report)
	d.checkChangelogHealth(ctx, report)
	if model != nil {
		d.checkTupleHealth(ctx, report, *model)
	}

	return report, nil
}

func (d *Doctor) checkSchema(report *Report) *schema.Model {
	m, err := parser.ParseFile(d.schemaPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Schema",
			Name:     "valid",
			Status:   StatusFail,
			Message:  fmt.Sprintf("schema %s failed to parse", d.schemaPath),
			Details:  err.Error(),
			FixHint:  "run 'nexus validate --schema " + d.schemaPath + "'",
		})
		return nil
	}

	relCount := 0
	for _, t := range m.Types {
		relCount += len(t.Relations)
	}
	report.AddCheck(CheckResult{
		Category: "Schema",
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("schema is valid (%d types, %d relations)", len(m.Types), relCount),
	})

	if err := schema.Validate(m.Types); err != nil {
		report.AddCheck(CheckResult{
			Category: "Schema",
			Name:     "cycles",
			Status:   StatusFail,
			Message:  "schema has structural or cyclic errors",
			Details:  err.Error(),
			FixHint:  "review relation rewrite rules and parent relations for cycles",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: "Schema",
		Name:     "cycles",
		Status:   StatusPass,
		Message:  "no cyclic dependencies detected",
	})

	return &m
}

func (d *Doctor) checkStoreConnectivity(ctx context.Context, report *Report) {
	seq, err := d.store.CurrentSeq(ctx, d.tenant)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Store",
			Name:     "connectivity",
			Status:   StatusFail,
			Message:  "could not reach the tuple store",
			Details:  err.Error(),
			FixHint:  "check database.url / database.host in config",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Store",
		Name:     "connectivity",
		Status:   StatusPass,
		Message:  fmt.Sprintf("store reachable, tenant %q at seq %d", d.tenant, seq),
	})
}

func (d *Doctor) checkChangelogHealth(ctx context.Context, report *Report) {
	entries, err := d.store.ChangelogScan(ctx, d.tenant, 0, 1)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Change Log",
			Name:     "readable",
			Status:   StatusFail,
			Message:  "could not read the change log",
			Details:  err.Error(),
		})
		return
	}
	if len(entries) == 0 {
		report.AddCheck(CheckResult{
			Category: "Change Log",
			Name:     "data",
			Status:   StatusWarn,
			Message:  "change log is empty for this tenant",
			Details:  "no authorization data has been written yet",
		})
		return
	}
	age := time.Since(entries[0].Ts)
	report.AddCheck(CheckResult{
		Category: "Change Log",
		Name:     "data",
		Status:   StatusPass,
		Message:  fmt.Sprintf("change log active, oldest entry %s old", age.Round(time.Second)),
	})
}

func (d *Doctor) checkTupleHealth(ctx context.Context, report *Report, m schema.Model) {
	validTypes := make(map[string]bool, len(m.Types))
	validRelations := make(map[string]map[string]bool, len(m.Types))
	for _, t := range m.Types {
		validTypes[t.Name] = true
		rels := make(map[string]bool, len(t.Relations))
		for _, r := range t.Relations {
			rels[r.Name] = true
		}
		validRelations[t.Name] = rels
	}

	entries, err := d.store.ChangelogScan(ctx, d.tenant, 0, 200)
	if err != nil {
		return
	}

	var unknownTypes, unknownRelations []string
	seenTypes := make(map[string]bool)
	seenRelations := make(map[string]bool)

	for _, e := range entries {
		t := e.After
		if t == nil {
			t = e.Before
		}
		if t == nil {
			continue
		}
		if !validTypes[t.ObjectType] && !seenTypes[t.ObjectType] {
			seenTypes[t.ObjectType] = true
			unknownTypes = append(unknownTypes, t.ObjectType)
		}
		key := t.ObjectType + "#" + t.Relation
		if validTypes[t.ObjectType] && !validRelations[t.ObjectType][t.Relation] && !seenRelations[key] {
			seenRelations[key] = true
			unknownRelations = append(unknownRelations, key)
		}
	}

	if len(unknownTypes) > 0 {
		report.AddCheck(CheckResult{
			Category: "Data Health",
			Name:     "types",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("found %d unknown object types in recent writes", len(unknownTypes)),
			Details:  strings.Join(unknownTypes, ", "),
		})
	}
	if len(unknownRelations) > 0 {
		report.AddCheck(CheckResult{
			Category: "Data Health",
			Name:     "relations",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("found %d unknown relations in recent writes", len(unknownRelations)),
			Details:  strings.Join(unknownRelations, ", "),
		})
	}
	if len(unknownTypes) == 0 && len(unknownRelations) == 0 {
		report.AddCheck(CheckResult{
			Category: "Data Health",
			Name:     "valid",
			Status:   StatusPass,
			Message:  "recent writes reference valid types and relations",
		})
	}
}
