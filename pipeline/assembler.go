package pipeline

import (
	"sort"
	"strings"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/config"
)

// AssembleText turns OCR segments into a cleaned plate string. Segments at
// or below the probability threshold are dropped, the rest are stably
// sorted left-to-right by XStart before concatenation: OCR engines return
// segments in arbitrary order, and naive concatenation transposes plates
// ("01 MH" instead of "MH 01"). Returns false when the cleaned text is too
// short to be a plausible plate.
func AssembleText(segments []model.OcrSegment, params config.FilterParameters) (string, bool) {
	kept := make([]model.OcrSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.Probability > params.MinOcrProbability {
			kept = append(kept, seg)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].XStart < kept[j].XStart
	})

	var builder strings.Builder
	for _, seg := range kept {
		builder.WriteString(seg.Text)
	}

	cleaned := cleanPlate(builder.String())
	if len(cleaned) < params.MinPlateLength {
		return "", false
	}
	return cleaned, true
}

// cleanPlate uppercases and strips everything outside [A-Z0-9].
func cleanPlate(text string) string {
	var builder strings.Builder
	for _, r := range strings.ToUpper(text) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
