package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/classifier"
	"github.com/Ganeshpithani/infosys-springboard-internship/internal/testutil"
)

// RegisterSteps binds every step of the ingredient feature to w.
func (w *World) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a photo "([^"]*)" whose label reads "([^"]*)"$`, w.aPhotoWithLabel)
	sc.Step(`^a photo "([^"]*)" with no readable text$`, w.aPhotoWithoutText)
	sc.Step(`^a corrupt photo "([^"]*)"$`, w.aCorruptPhoto)
	sc.Step(`^the categorizer maps "([^"]*)" to "([^"]*)"$`, w.theCategorizerMaps)
	sc.Step(`^the classifier model is missing$`, w.theClassifierModelIsMissing)
	sc.Step(`^the classifier sees "([^"]*)" with confidence ([0-9.]+)$`, w.theClassifierSees)

	sc.Step(`^I extract ingredients from all photos$`, w.iExtract)
	sc.Step(`^I extract ingredients from all photos using (\d+) workers$`, w.iExtractWithWorkers)

	sc.Step(`^the ingredient list is "([^"]*)"$`, w.theIngredientListIs)
	sc.Step(`^the ingredient list is empty$`, w.theIngredientListIsEmpty)
	sc.Step(`^(\d+) photos? (?:was|were) processed$`, w.photosWereProcessed)
	sc.Step(`^(\d+) photos? (?:was|were) skipped$`, w.photosWereSkipped)
	sc.Step(`^the classifier fallback was used$`, w.theFallbackWasUsed)
	sc.Step(`^the classifier was not consulted$`, w.theClassifierWasNotConsulted)
	sc.Step(`^the file "([^"]*)" no longer exists$`, w.theFileNoLongerExists)
	sc.Step(`^the file "([^"]*)" still exists$`, w.theFileStillExists)
}

func (w *World) writePhoto(name, label string) error {
	width := w.nextWidth()
	img := testutil.GradientImage(width, 24)
	if err := writePNG(w.path(name), img); err != nil {
		return err
	}
	if label != "" {
		w.labels[width] = label
	}
	w.photos = append(w.photos, w.path(name))
	return nil
}

func (w *World) aPhotoWithLabel(name, label string) error {
	return w.writePhoto(name, label)
}

func (w *World) aPhotoWithoutText(name string) error {
	return w.writePhoto(name, "")
}

func (w *World) aCorruptPhoto(name string) error {
	if err := os.WriteFile(w.path(name), []byte("not an image"), 0o600); err != nil {
		return err
	}
	w.photos = append(w.photos, w.path(name))
	return nil
}

func (w *World) theCategorizerMaps(text, answer string) error {
	w.answers[text] = answer
	return nil
}

func (w *World) theClassifierModelIsMissing() error {
	cfg := classifier.DefaultConfig()
	cfg.ModelPath = filepath.Join(w.Dir, "missing", "model.onnx")
	cfg.LabelsPath = filepath.Join(w.Dir, "missing", "config.json")
	w.classifier = classifier.New(cfg)
	return nil
}

func (w *World) theClassifierSees(label string, confidence float64) error {
	w.stubCls = &stubClassifier{result: classifier.Result{Label: label, Confidence: confidence}}
	w.classifier = w.stubCls
	return nil
}

func (w *World) iExtract() error {
	return w.iExtractWithWorkers(1)
}

func (w *World) iExtractWithWorkers(workers int) error {
	p, err := w.build(workers)
	if err != nil {
		return err
	}
	w.Result, w.Err = p.Run(context.Background(), w.photos)
	return w.Err
}

func (w *World) theIngredientListIs(expected string) error {
	if w.Result == nil {
		return fmt.Errorf("no result, extraction failed: %v", w.Err)
	}
	if w.Result.Ingredients != expected {
		return fmt.Errorf("expected ingredient list %q, got %q", expected, w.Result.Ingredients)
	}
	return nil
}

func (w *World) theIngredientListIsEmpty() error {
	return w.theIngredientListIs("")
}

func (w *World) photosWereProcessed(n int) error {
	if got := w.Result.Processed(); got != n {
		return fmt.Errorf("expected %d processed photos, got %d", n, got)
	}
	return nil
}

func (w *World) photosWereSkipped(n int) error {
	if got := w.Result.Skipped(); got != n {
		return fmt.Errorf("expected %d skipped photos, got %d", n, got)
	}
	return nil
}

func (w *World) theFallbackWasUsed() error {
	for _, img := range w.Result.Images {
		if img.UsedFallback {
			return nil
		}
	}
	return errors.New("no image used the classifier fallback")
}

func (w *World) theClassifierWasNotConsulted() error {
	if w.stubCls == nil {
		return errors.New("scenario has no stub classifier")
	}
	if calls := w.stubCls.calls.Load(); calls != 0 {
		return fmt.Errorf("classifier was called %d times", calls)
	}
	return nil
}

func (w *World) theFileNoLongerExists(name string) error {
	if testutil.FileExists(w.path(name)) {
		return fmt.Errorf("%s still exists", name)
	}
	return nil
}

func (w *World) theFileStillExists(name string) error {
	if !testutil.FileExists(w.path(name)) {
		return fmt.Errorf("%s was removed", name)
	}
	return nil
}
