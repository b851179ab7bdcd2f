package recognizer

import (
	"errors"
	"fmt"
)

// stepFunc runs the decoder on the ids generated so far and returns the
// logits for the next position.
type stepFunc func(ids []int64) ([]float32, error)

// greedyDecode generates tokens one at a time, always taking the highest
// scoring id, until EOS or maxLength new tokens. The start token is not part
// of the result; EOS is.
func greedyDecode(step stepFunc, start, eos int64, maxLength int) ([]int64, error) {
	ids := []int64{start}
	for range maxLength {
		logits, err := step(ids)
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", len(ids), err)
		}
		next, err := argmax(logits)
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", len(ids), err)
		}
		ids = append(ids, next)
		if next == eos {
			break
		}
	}
	return ids[1:], nil
}

func argmax(logits []float32) (int64, error) {
	if len(logits) == 0 {
		return 0, errors.New("empty logits")
	}
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int64(best), nil
}

// lastPosition slices the final sequence position out of [1, seq, vocab]
// decoder logits.
func lastPosition(data []float32, shape []int64) ([]float32, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, fmt.Errorf("unexpected logits shape %v", shape)
	}
	seq, vocab := int(shape[1]), int(shape[2])
	if len(data) != seq*vocab {
		return nil, fmt.Errorf("logits length %d does not match shape %v", len(data), shape)
	}
	return data[(seq-1)*vocab:], nil
}
