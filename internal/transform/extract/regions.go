package extract

import (
	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/blockscan"
	"go.uber.org/zap"
)

// minBodyLines below which a region's confidence is reduced. A two-line
// routine is still extracted verbatim; the low confidence only informs
// downstream reporting.
const minBodyLines = 3

// ExtractLogicRegion finds the first line opening a block under any of the
// candidate names and walks forward to the region's end: the first non-blank,
// non-comment line whose indent level is at or below the opener's. The
// boundary is invariant under insertion or removal of blank or comment-only
// lines inside the body.
//
// The boolean result is false when no candidate name opens a block anywhere
// in the document.
func (e *Extractor) ExtractLogicRegion(doc *schemas.SourceDocument, table *blockscan.Table, candidateNames []string) (schemas.LogicRegion, bool) {
	openerIdx := table.FirstOpener(candidateNames)
	if openerIdx < 0 {
		return schemas.LogicRegion{}, false
	}
	return e.regionAt(doc, table, openerIdx), true
}

// ExtractHelperFunctions applies the same boundary walk to a fixed catalogue
// of helper names and returns at most one region per name, possibly none.
// Helpers nested inside an already-claimed region are skipped so regions never
// overlap, and when a document redefines a helper the first extracted body
// wins, matching the duplicate-parameter policy. Labels carried by the claimed
// regions are reserved too.
func (e *Extractor) ExtractHelperFunctions(doc *schemas.SourceDocument, table *blockscan.Table, helperNames []string, claimed []schemas.LogicRegion) []schemas.LogicRegion {
	var regions []schemas.LogicRegion
	taken := append([]schemas.LogicRegion(nil), claimed...)
	seen := make(map[string]bool, len(claimed))
	for _, r := range claimed {
		seen[r.Label] = true
	}

	for _, name := range helperNames {
		for _, openerIdx := range table.Openers(name) {
			region := e.regionAt(doc, table, openerIdx)
			if overlapsAny(region, taken) {
				e.logger.Debug("Skipping nested helper to preserve region disjointness.",
					zap.String("helper", name), zap.Int("offset", region.StartOffset))
				continue
			}
			if seen[region.Label] {
				e.logger.Debug("Skipping redefinition of an already extracted region.",
					zap.String("helper", name), zap.Int("offset", region.StartOffset))
				continue
			}
			regions = append(regions, region)
			taken = append(taken, region)
			seen[region.Label] = true
		}
	}
	return regions
}

func (e *Extractor) regionAt(doc *schemas.SourceDocument, table *blockscan.Table, openerIdx int) schemas.LogicRegion {
	opener := table.Lines[openerIdx]
	bodyEnd := table.BodyEnd(openerIdx)

	start := opener.StartOffset
	end := table.Lines[bodyEnd-1].EndOffset

	contentLines := 0
	for i := openerIdx + 1; i < bodyEnd; i++ {
		if !table.Lines[i].IsBlank && !table.Lines[i].IsCommentOnly {
			contentLines++
		}
	}

	confidence := 1.0
	if contentLines < minBodyLines {
		confidence = 0.6
	}

	return schemas.LogicRegion{
		Label:       opener.BlockName,
		StartOffset: start,
		EndOffset:   end,
		RawText:     doc.Content()[start:end],
		Confidence:  confidence,
	}
}

func overlapsAny(region schemas.LogicRegion, others []schemas.LogicRegion) bool {
	for _, o := range others {
		if region.StartOffset < o.EndOffset && o.StartOffset < region.EndOffset {
			return true
		}
	}
	return false
}
