package scene

import (
	"image"
	"math"
	"slices"
	"sort"
)

// Region is a detected text area with its mean detector probability.
type Region struct {
	Box        image.Rectangle
	Confidence float64
}

// DetectRegions binarizes a probability map, groups foreground pixels into
// 4-connected components and returns one axis-aligned box per component whose
// mean probability reaches boxThresh and whose area reaches minArea.
func DetectRegions(prob []float32, w, h int, thresh float32, boxThresh float64, minArea int) []Region {
	if w <= 0 || h <= 0 || len(prob) != w*h {
		return nil
	}

	visited := make([]bool, w*h)
	queue := make([]int, 0, 256)
	var regions []Region

	for start := range prob {
		if visited[start] || prob[start] < thresh {
			continue
		}
		visited[start] = true
		queue = append(queue[:0], start)

		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		var sum float64
		count := 0

		for len(queue) > 0 {
			ci := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := ci%w, ci/w
			sum += float64(prob[ci])
			count++
			minX, maxX = min(minX, cx), max(maxX, cx)
			minY, maxY = min(minY, cy), max(maxY, cy)

			for _, n := range [4][2]int{{cx + 1, cy}, {cx - 1, cy}, {cx, cy + 1}, {cx, cy - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !visited[ni] && prob[ni] >= thresh {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}

		box := image.Rect(minX, minY, maxX+1, maxY+1)
		conf := sum / float64(count)
		if conf < boxThresh || box.Dx()*box.Dy() < minArea {
			continue
		}
		regions = append(regions, Region{Box: expand(box, w, h), Confidence: conf})
	}
	return regions
}

// expand grows a DB kernel box back towards the full text extent. The
// detector predicts shrunk text cores, so the box is padded by 40% of its height.
func expand(r image.Rectangle, w, h int) image.Rectangle {
	pad := int(math.Ceil(float64(r.Dy()) * 0.4))
	return image.Rect(
		max(0, r.Min.X-pad), max(0, r.Min.Y-pad),
		min(w, r.Max.X+pad), min(h, r.Max.Y+pad),
	)
}

// ScaleRegions maps boxes from detector input coordinates back to the
// original image, clamped to bounds.
func ScaleRegions(regions []Region, sx, sy float64, bounds image.Rectangle) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		b := image.Rect(
			bounds.Min.X+int(math.Floor(float64(r.Box.Min.X)*sx)),
			bounds.Min.Y+int(math.Floor(float64(r.Box.Min.Y)*sy)),
			bounds.Min.X+int(math.Ceil(float64(r.Box.Max.X)*sx)),
			bounds.Min.Y+int(math.Ceil(float64(r.Box.Max.Y)*sy)),
		).Intersect(bounds)
		if b.Empty() {
			continue
		}
		out = append(out, Region{Box: b, Confidence: r.Confidence})
	}
	return out
}

// OrderRegions sorts regions into reading order: lines top to bottom, boxes
// left to right within a line. Two boxes share a line when their top edges
// differ by less than half the median box height.
func OrderRegions(regions []Region) []Region {
	if len(regions) < 2 {
		return regions
	}
	heights := make([]int, len(regions))
	for i, r := range regions {
		heights[i] = r.Box.Dy()
	}
	slices.Sort(heights)
	tol := max(1, heights[len(heights)/2]/2)

	sorted := slices.Clone(regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
	})

	var (
		out     []Region
		line    []Region
		lineTop int
	)
	flush := func() {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Box.Min.X < line[j].Box.Min.X })
		out = append(out, line...)
		line = line[:0]
	}
	for i, r := range sorted {
		if i == 0 || r.Box.Min.Y-lineTop >= tol {
			if len(line) > 0 {
				flush()
			}
			lineTop = r.Box.Min.Y
		}
		line = append(line, r)
	}
	flush()
	return out
}
