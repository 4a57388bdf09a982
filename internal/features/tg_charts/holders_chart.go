package tg_charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"holders-snapshot/internal/features/holders"
	"holders-snapshot/internal/infra/apperr"
	logging "holders-snapshot/internal/infra/log"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	chartWidth  = 2326
	chartHeight = 1334

	titleX = 200.0
	titleY = 120.0

	summaryX = 1500.0
	summaryY = 120.0

	chartAreaLeft   = 300.0
	chartAreaRight  = 2100.0
	chartAreaTop    = 300.0
	chartAreaBottom = 1150.0

	barSpacing = 30.0

	// MaxBars keeps every bar wider than barSpacing
	MaxBars = 50

	gridLinesCount = 4
	gridLineStartX = 200.0
	gridLineEndX   = 2150.0

	titleFontSize    = 60.0
	mainFontSize     = 35.0
	barValueFontSize = 32.0
	labelFontSize    = 24.0

	barValueOffsetY = 20.0
	labelOffsetY    = 40.0
)

var fontPaths = []string{
	"etc/fonts/InterVariable.ttf",
	"etc/fonts/Inter-Regular.ttf",
	"~/Library/Fonts/InterVariable.ttf",
	"/Library/Fonts/Inter-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

// GenerateHoldersChart draws a bar per holder (biggest first) and saves it as PNG at path.
func GenerateHoldersChart(top []holders.Holding, supply uint64, owners int, title, path string) (string, error) {
	if len(top) == 0 {
		return "", apperr.IO("holders chart", fmt.Errorf("no holders to draw"))
	}
	if len(top) > MaxBars {
		logging.LogWarn("Too many holders for chart, drawing the biggest only",
			zap.Int("holders", len(top)),
			zap.Int("maxBars", MaxBars))
		top = top[:MaxBars]
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.Black)
	dc.Clear()

	fontPath := loadFont(dc)
	setFont := func(size float64) {
		if fontPath != "" {
			dc.LoadFontFace(fontPath, size)
		}
	}

	setFont(titleFontSize)
	dc.SetColor(color.White)
	dc.DrawString(title, titleX, titleY)

	setFont(mainFontSize)
	dc.SetColor(color.RGBA{0, 255, 0, 255})
	dc.DrawString(fmt.Sprintf("%d tokens / %d holders", supply, owners), summaryX, summaryY)

	maxCount := top[0].Count
	for _, h := range top {
		if h.Count > maxCount {
			maxCount = h.Count
		}
	}
	chartAreaHeight := chartAreaBottom - chartAreaTop

	dc.SetColor(color.RGBA{80, 80, 80, 255})
	dc.SetLineWidth(1)
	for i := 0; i <= gridLinesCount; i++ {
		y := chartAreaBottom - float64(i)/gridLinesCount*chartAreaHeight
		dc.DrawLine(gridLineStartX, y, gridLineEndX, y)
		dc.Stroke()
	}

	barWidth := barWidthFor(len(top))
	for i, h := range top {
		barX := chartAreaLeft + float64(i)*(barWidth+barSpacing)
		barHeight := float64(h.Count) / float64(maxCount) * chartAreaHeight
		barY := chartAreaBottom - barHeight

		dc.SetColor(color.RGBA{128, 128, 128, 255})
		dc.DrawRectangle(barX, barY, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(color.White)
		setFont(barValueFontSize)
		value := fmt.Sprintf("%d", h.Count)
		w, _ := dc.MeasureString(value)
		dc.DrawString(value, barX+(barWidth-w)/2, barY-barValueOffsetY)

		setFont(labelFontSize)
		label := shortAddress(h.Owner)
		w, _ = dc.MeasureString(label)
		dc.DrawString(label, barX+(barWidth-w)/2, chartAreaBottom+labelOffsetY)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", apperr.IO("holders chart", fmt.Errorf("failed to create charts directory: %w", err))
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return "", apperr.IO("holders chart", fmt.Errorf("failed to save chart: %w", err))
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return "", apperr.IO("holders chart", fmt.Errorf("failed to stat chart file: %w", err))
	}
	if fileInfo.Size() == 0 {
		os.Remove(path)
		return "", apperr.IO("holders chart", fmt.Errorf("chart file is empty after rendering"))
	}

	logging.LogInfo("Holders chart generated",
		zap.String("filename", path),
		zap.Int64("fileSize", fileInfo.Size()),
		zap.Int("barsCount", len(top)))
	return path, nil
}

func barWidthFor(bars int) float64 {
	return (chartAreaRight-chartAreaLeft)/float64(bars) - barSpacing
}

// loadFont returns the first font from fontPaths gg can load, "" means gg's built-in face.
func loadFont(dc *gg.Context) string {
	for _, fontPath := range fontPaths {
		path := expandPath(fontPath)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := dc.LoadFontFace(path, mainFontSize); err != nil {
			logging.LogWarn("Font file exists but failed to load", zap.String("path", path), zap.Error(err))
			continue
		}
		return path
	}
	logging.LogWarn("No font found, using default face", zap.Int("paths_checked", len(fontPaths)))
	return ""
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}

// shortAddress: 0x6c61…2Af4
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
