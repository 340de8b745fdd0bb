package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/metrics"
)

// DualExtractor runs a TextEngine and a RegionEngine side by side. Either
// engine may be nil, in which case it contributes nothing.
type DualExtractor struct {
	text   TextEngine
	region RegionEngine
}

// NewDualExtractor combines the two engines.
func NewDualExtractor(text TextEngine, region RegionEngine) *DualExtractor {
	return &DualExtractor{text: text, region: region}
}

// Engines lists the names of the configured engines.
func (d *DualExtractor) Engines() []string {
	var names []string
	if d.text != nil {
		names = append(names, d.text.Name())
	}
	if d.region != nil {
		names = append(names, d.region.Name())
	}
	return names
}

// Extract runs both engines concurrently. An engine that fails, panics or is
// missing degrades to empty output; the other engine's result is kept.
func (d *DualExtractor) Extract(ctx context.Context, binarized *image.Gray, original image.Image) Output {
	var (
		out Output
		wg  sync.WaitGroup
	)

	if d.text != nil && binarized != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := runGuarded(d.text.Name(), func() (string, error) {
				return d.text.ReadText(ctx, binarized)
			})
			if err != nil {
				d.degrade(d.text.Name(), err)
				return
			}
			out.Text = text
			n := 0
			if text != "" {
				n = 1
			}
			metrics.ObserveOCRFragments(d.text.Name(), n)
		}()
	}

	if d.region != nil && original != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			regions, err := runGuarded(d.region.Name(), func() ([]Fragment, error) {
				return d.region.ReadRegions(ctx, original)
			})
			if err != nil {
				d.degrade(d.region.Name(), err)
				return
			}
			for i := range regions {
				regions[i].Source = SourceScene
			}
			out.Regions = regions
			metrics.ObserveOCRFragments(d.region.Name(), len(regions))
		}()
	}

	wg.Wait()
	return out
}

func (d *DualExtractor) degrade(engine string, err error) {
	metrics.RecordOCRError(engine)
	slog.Warn("OCR engine failed, continuing without it", "engine", engine, "error", err)
}

// runGuarded converts engine panics into errors and times the call.
func runGuarded[T any](engine string, fn func() (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("%s engine panic: %v", engine, r)
		}
		metrics.ObserveStage("ocr_"+engine, time.Since(start))
	}()
	return fn()
}
