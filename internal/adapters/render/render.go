// Package render turns a ranked board into an image.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/okian/slashboard/internal/adapters/assets"
	"github.com/okian/slashboard/internal/domain/leaderboard"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/metrics"
)

// Sheet is everything a renderer needs to draw one board.
type Sheet struct {
	Title    string
	Subtitle string
	// Rows are drawn in order; a highlighted row is drawn with an accent.
	Rows   []model.RankedEntry
	Assets assets.Assets
	Stats  leaderboard.Stats
}

// Renderer produces an encoded image for a sheet.
type Renderer interface {
	Render(ctx context.Context, s Sheet) ([]byte, error)
}

// EmptyMessage is returned instead of an image when there is nothing to rank.
func EmptyMessage(scope string) string {
	if scope == "" {
		return "No challenge records yet. Submit a run to appear on the leaderboard."
	}
	return fmt.Sprintf("No challenge records for %q yet. Bind a game account and submit a run to appear on the leaderboard.", scope)
}

// RankLabel formats a rank, collapsing anything above 999.
func RankLabel(rank int) string {
	if rank > 999 {
		return "999+"
	}
	return strconv.Itoa(rank)
}

// Layout constants in pixels.
const (
	width      = 960
	headerH    = 110
	footerH    = 60
	rowH       = 120
	rowGap     = 8
	margin     = 24
	avatarX    = margin + 70
	infoX      = avatarX + assets.AvatarSize + 20
	halvesX    = 520
	iconGap    = 6
	halfGap    = 24
	lineHeight = 16
)

var (
	colorBackground = color.RGBA{R: 0x1b, G: 0x1d, B: 0x24, A: 0xff}
	colorRow        = color.RGBA{R: 0x26, G: 0x29, B: 0x33, A: 0xff}
	colorHighlight  = color.RGBA{R: 0x4a, G: 0x3b, B: 0x1c, A: 0xff}
	colorText       = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	colorMuted      = color.RGBA{R: 0x9a, G: 0xa0, B: 0xad, A: 0xff}
	colorGold       = color.RGBA{R: 0xf2, G: 0xc1, B: 0x4e, A: 0xff}
	colorIconSlot   = color.RGBA{R: 0x33, G: 0x37, B: 0x42, A: 0xff}
)

// PNGRenderer draws a plain list layout with the built-in bitmap font.
type PNGRenderer struct{}

// NewPNGRenderer returns a PNG renderer.
func NewPNGRenderer() *PNGRenderer { return &PNGRenderer{} }

// Height returns the canvas height for n rows.
func Height(n int) int {
	return headerH + n*(rowH+rowGap) + footerH
}

func (r *PNGRenderer) Render(ctx context.Context, s Sheet) ([]byte, error) {
	if len(s.Rows) == 0 {
		return nil, ErrNothingToRender
	}
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardRenderLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	dc := gg.NewContext(width, Height(len(s.Rows)))
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorBackground)
	dc.Clear()

	drawHeader(dc, s)
	for i, row := range s.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		drawRow(dc, headerH+i*(rowH+rowGap), row, s.Assets)
	}
	drawFooter(dc, s.Stats)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(dc *gg.Context, s Sheet) {
	dc.SetColor(colorGold)
	dc.DrawString(s.Title, margin, 40)
	dc.SetColor(colorMuted)
	dc.DrawString(s.Subtitle, margin, 64)
	dc.DrawString(fmt.Sprintf("participants: %d", s.Stats.Total), margin, 88)
}

func drawRow(dc *gg.Context, y int, e model.RankedEntry, a assets.Assets) {
	bg := colorRow
	if e.Highlight {
		bg = colorHighlight
	}
	dc.SetColor(bg)
	dc.DrawRoundedRectangle(margin, float64(y), width-2*margin, rowH, 10)
	dc.Fill()

	mid := float64(y) + rowH/2
	dc.SetColor(colorGold)
	dc.DrawStringAnchored(RankLabel(e.Rank), margin+35, mid, 0.5, 0.5)

	if img, ok := a.Avatars[e.AccountID]; ok && img != nil {
		dc.DrawImage(img, avatarX, y+(rowH-assets.AvatarSize)/2)
	}

	dc.SetColor(colorText)
	dc.DrawString(e.Name, infoX, float64(y+30))
	dc.SetColor(colorMuted)
	dc.DrawString("UID "+model.MaskUID(e.ExternalUID), infoX, float64(y+30+lineHeight))
	dc.SetColor(colorGold)
	dc.DrawString("score "+strconv.FormatInt(e.Score, 10), infoX, float64(y+30+3*lineHeight))
	if e.RankTier != "" {
		dc.SetColor(colorText)
		dc.DrawString("tier "+e.RankTier, infoX, float64(y+30+4*lineHeight))
	}

	x := halvesX
	for _, h := range e.Halves {
		drawHalf(dc, x, y, h, a)
		x += model.MaxCharactersInHalf*(assets.IconSize+iconGap) + halfGap
	}
}

func drawHalf(dc *gg.Context, x, y int, h model.CompositionHalf, a assets.Assets) {
	iconY := y + 20
	for i := 0; i < model.MaxCharactersInHalf; i++ {
		ix := x + i*(assets.IconSize+iconGap)
		var img image.Image
		if i < len(h.Characters) {
			img = a.Icons[h.Characters[i].Key()]
		}
		if img == nil {
			dc.SetColor(colorIconSlot)
			dc.DrawRectangle(float64(ix), float64(iconY), assets.IconSize, assets.IconSize)
			dc.Fill()
		} else {
			dc.DrawImage(img, ix, iconY)
		}
		if i < len(h.Characters) {
			c := h.Characters[i]
			dc.SetColor(colorMuted)
			dc.DrawString(fmt.Sprintf("C%d Lv%d", c.Chain, c.Level), float64(ix), float64(iconY+assets.IconSize+lineHeight))
		}
	}
	dc.SetColor(colorText)
	label := strconv.Itoa(h.Score)
	if h.BuffName != "" {
		label = h.BuffName + " " + label
	}
	dc.DrawString(label, float64(x), float64(iconY+assets.IconSize+2*lineHeight+4))
}

func drawFooter(dc *gg.Context, st leaderboard.Stats) {
	y := float64(dc.Height() - footerH/2)
	dc.SetColor(colorMuted)
	dc.DrawString(fmt.Sprintf("top %d by %s", st.MaxScore, st.MaxName), margin, y)
	dc.DrawString(fmt.Sprintf("mean %d", st.MeanScore), width/2, y)
}
