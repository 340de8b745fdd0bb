package scene

import "github.com/Ganeshpithani/infosys-springboard-internship/internal/onnx"

// Sequence is one greedy-decoded CTC output.
type Sequence struct {
	Indices []int     // collapsed class indices
	Probs   []float64 // probability of each kept step
}

// Confidence is the mean probability of the kept steps, 0 when empty.
func (s Sequence) Confidence() float64 {
	if len(s.Probs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s.Probs {
		sum += p
	}
	return sum / float64(len(s.Probs))
}

// DecodeGreedy decodes recognizer output of shape [N, T, C] (or [N, C, T]
// with classesFirst) by taking the best class per step, dropping blanks and
// collapsing repeats.
func DecodeGreedy(logits []float32, shape []int64, blank int, classesFirst bool) []Sequence {
	if len(shape) != 3 {
		return nil
	}
	n, tDim, cDim := int(shape[0]), int(shape[1]), int(shape[2])
	if classesFirst {
		tDim, cDim = cDim, tDim
	}
	if n <= 0 || tDim <= 0 || cDim <= 0 || len(logits) < n*tDim*cDim {
		return nil
	}

	out := make([]Sequence, n)
	step := make([]float32, cDim)
	for b := range n {
		base := b * tDim * cDim
		prev := -1
		var seq Sequence
		for t := range tDim {
			for k := range cDim {
				if classesFirst {
					step[k] = logits[base+k*tDim+t]
				} else {
					step[k] = logits[base+t*cDim+k]
				}
			}
			idx, _ := onnx.Argmax(step)
			if idx != blank && idx != prev {
				seq.Indices = append(seq.Indices, idx)
				seq.Probs = append(seq.Probs, probOf(step, idx))
			}
			prev = idx
		}
		out[b] = seq
	}
	return out
}

// probOf returns step[idx] when the step already looks like a distribution,
// otherwise its softmax probability.
func probOf(step []float32, idx int) float64 {
	var sum float64
	probLike := true
	for _, v := range step {
		if v < 0 || v > 1 {
			probLike = false
			break
		}
		sum += float64(v)
	}
	if probLike && sum > 0.99 && sum < 1.01 {
		return float64(step[idx])
	}
	return onnx.Softmax(step)[idx]
}

// classesFirst guesses the layout from the expected class count.
func classesFirst(shape []int64, classes int) bool {
	return len(shape) == 3 && int(shape[2]) != classes && int(shape[1]) == classes
}
