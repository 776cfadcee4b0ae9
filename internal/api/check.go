package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joeblew999/cultivar-map/internal/legend"
)

// Issue kinds reported by Check besides the legend render problems.
const (
	IssueUnknownLayer = "unknown_layer"
	IssueUnresolved   = "unresolved"
	IssueMismatch     = "mismatch"
)

// Issue is one configuration problem found by Check.
type Issue struct {
	Kind   string `json:"kind" yaml:"kind"`
	Where  string `json:"where" yaml:"where"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (i Issue) String() string {
	if i.Detail == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Where)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Kind, i.Where, i.Detail)
}

// Check validates the loaded configuration. It reports catalog legends
// owned by layers that are not configured, entries that render as
// placeholder rows in any configured language, grid cells whose reference
// fields differ in length, and references with no catalog entry.
func Check(svc *Services) []Issue {
	var issues []Issue
	langs := svc.Layers.Site().Languages

	for _, ll := range svc.Catalog.Layers() {
		if _, _, ok := svc.Layers.Get(ll.Layer); !ok {
			issues = append(issues, Issue{Kind: IssueUnknownLayer, Where: ll.Layer})
		}
		for _, lg := range ll.Legends {
			for _, e := range lg.Entries {
				failing := map[legend.Problem][]string{}
				for _, lang := range langs {
					for p := range legend.Problems(legend.Render(e, lang)) {
						failing[p] = append(failing[p], lang)
					}
				}
				problems := make([]string, 0, len(failing))
				for p := range failing {
					problems = append(problems, string(p))
				}
				sort.Strings(problems)
				for _, p := range problems {
					issues = append(issues, Issue{
						Kind:   p,
						Where:  ll.Layer + "/" + lg.ID + "/" + e.EntryID(),
						Detail: strings.Join(failing[legend.Problem(p)], ", "),
					})
				}
			}
		}
	}

	for _, cell := range svc.Grid.Features() {
		missing, mismatch := svc.Resolver.Unresolved(cell.Legends, cell.SourceMaps)
		if mismatch {
			issues = append(issues, Issue{
				Kind:   IssueMismatch,
				Where:  cell.ID,
				Detail: fmt.Sprintf("%d legends, %d source maps", len(legend.SplitRefs(cell.Legends)), len(legend.SplitRefs(cell.SourceMaps))),
			})
			continue
		}
		for _, ref := range missing {
			issues = append(issues, Issue{
				Kind:   IssueUnresolved,
				Where:  cell.ID,
				Detail: strings.ToLower(ref.Source) + "/" + ref.Entry,
			})
		}
	}
	return issues
}
