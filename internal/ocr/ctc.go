package ocr

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
)

// loadDict reads a character dictionary, one entry per line. Index 0 of the
// model's class axis is the CTC blank; dictionary entries map to classes
// 1..len(dict).
func loadDict(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dict: %w", err)
	}
	defer f.Close()

	var dict []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry := strings.TrimRight(scanner.Text(), "\r\n")
		if entry == "" {
			entry = " "
		}
		dict = append(dict, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dict: %w", err)
	}
	if len(dict) == 0 {
		return nil, fmt.Errorf("dict %s is empty", path)
	}
	return dict, nil
}

// ctcGreedyDecode collapses a [T, C] logit sequence: per timestep pick the
// argmax class, merge repeats, drop blanks. Confidence is the mean softmax
// probability of the emitted characters.
func ctcGreedyDecode(logits []float32, steps, classes int, dict []string) (string, float64) {
	if steps == 0 || classes == 0 || len(logits) < steps*classes {
		return "", 0
	}
	var sb strings.Builder
	prev := -1
	var probSum float64
	emitted := 0

	for t := range steps {
		row := logits[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev {
			idx := best - 1
			if idx < len(dict) {
				sb.WriteString(dict[idx])
				probSum += softmaxProb(row, best)
				emitted++
			}
		}
		prev = best
	}
	if emitted == 0 {
		return "", 0
	}
	return sb.String(), probSum / float64(emitted)
}

func softmaxProb(row []float32, idx int) float64 {
	var maxV float32 = row[0]
	for _, v := range row {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - maxV))
	}
	return math.Exp(float64(row[idx]-maxV)) / sum
}
