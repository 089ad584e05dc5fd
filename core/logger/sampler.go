package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets num out of every den events through.
// A zero ratio lets everything through.
type ratioSampler struct {
	num, den atomic.Int64
	seen     atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.num.Store(int64(min(num, den)))
	s.den.Store(int64(den))
	s.seen.Store(0)
}

func (s *ratioSampler) Allow() bool {
	den := s.den.Load()
	if den == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return int64(n%uint64(den)) < s.num.Load()
}

// parseRatio reads "n/d", or a bare "d" meaning 1/d. Anything else is 0/0.
func parseRatio(ratio string) (int, int) {
	ratio = strings.TrimSpace(ratio)
	numStr, denStr, ok := strings.Cut(ratio, "/")
	if !ok {
		numStr, denStr = "1", ratio
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(numStr))
	den, err2 := strconv.Atoi(strings.TrimSpace(denStr))
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return 0, 0
	}
	return num, den
}
