package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/okian/slashboard/internal/domain/model"
)

// TextRenderer writes the board as an aligned plain-text table. It is used
// when images cannot be produced.
type TextRenderer struct{}

// NewTextRenderer returns a text renderer.
func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

func (r *TextRenderer) Render(ctx context.Context, s Sheet) ([]byte, error) {
	if len(s.Rows) == 0 {
		return nil, ErrNothingToRender
	}

	var buf bytes.Buffer
	if s.Title != "" {
		fmt.Fprintln(&buf, s.Title)
	}
	if s.Subtitle != "" {
		fmt.Fprintln(&buf, s.Subtitle)
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tUID\tSCORE\tTIER\tTEAMS")
	for _, e := range s.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rank := RankLabel(e.Rank)
		if e.Highlight {
			rank = "> " + rank
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			rank, e.Name, model.MaskUID(e.ExternalUID), e.Score, e.RankTier, teams(e.Halves))
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("flush table: %w", err)
	}

	fmt.Fprintf(&buf, "participants %d, top %d by %s, mean %d\n",
		s.Stats.Total, s.Stats.MaxScore, s.Stats.MaxName, s.Stats.MeanScore)
	return buf.Bytes(), nil
}

// teams lists character ids per half, e.g. "1102/1203 | 1504".
func teams(halves []model.CompositionHalf) string {
	parts := make([]string, 0, len(halves))
	for _, h := range halves {
		ids := make([]string, 0, len(h.Characters))
		for _, c := range h.Characters {
			ids = append(ids, c.Key())
		}
		parts = append(parts, strings.Join(ids, "/"))
	}
	return strings.Join(parts, " | ")
}
