package extract

import (
	"context"
	"fmt"
)

// VisitorKind names a visitor so batches can be configured by kind.
type VisitorKind int

const (
	// KindVerb finds entry points.
	KindVerb VisitorKind = iota
	// KindTransitive resolves records referenced by earlier batches.
	KindTransitive
)

func (k VisitorKind) String() string {
	switch k {
	case KindVerb:
		return "verb"
	case KindTransitive:
		return "transitive"
	default:
		return fmt.Sprintf("VisitorKind(%d)", int(k))
	}
}

// Visitor reads one parsed file and stages its findings in lc. Visitors of
// the same batch share lc and run concurrently; the parsed file is read-only.
//
// A returned error discards every finding of the file for the batch.
// Problems confined to one declaration are reported through lc.Reject.
type Visitor interface {
	Kind() VisitorKind
	Visit(ctx context.Context, lc *LocalContext) error
}

// DefaultBatches runs the entry-point visitor over every file, then the
// transitive visitor over every file.
var DefaultBatches = [][]VisitorKind{{KindVerb}, {KindTransitive}}

func defaultVisitors() map[VisitorKind]Visitor {
	return map[VisitorKind]Visitor{
		KindVerb:       VerbVisitor{},
		KindTransitive: TransitiveVisitor{},
	}
}

var (
	verbMarkers   = []string{"verb", "ftl.verb"}
	exportMarkers = []string{"export", "ftl.export"}
)
