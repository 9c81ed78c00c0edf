package qos

import (
	"fmt"
	"math"
	"time"
)

// Report summarizes the round trips of one session. It is a value and is
// never modified after Aggregate returns it.
type Report struct {
	Count     int // samples, i.e. acknowledged operations
	Attempted int // operations the caller attempted, always >= Count

	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration
	Total  time.Duration // sum of all samples

	LossRate float64 // 1 - Count/Attempted, in [0, 1]

	// NoData is set when there were no samples; only Attempted and LossRate
	// are meaningful then.
	NoData bool
}

// Aggregate reduces samples into a Report. attempted is the number of
// operations the caller tried; values below len(samples) are raised to it.
func Aggregate(samples []Sample, attempted int) Report {
	count := len(samples)
	if attempted < count {
		attempted = count
	}

	r := Report{Count: count, Attempted: attempted}
	if count == 0 {
		r.NoData = true
		if attempted > 0 {
			r.LossRate = 1
		}
		return r
	}

	var sum, sumSq float64
	r.Min = samples[0].Duration
	r.Max = samples[0].Duration
	for _, s := range samples {
		d := s.Duration.Seconds()
		sum += d
		sumSq += d * d
		r.Total += s.Duration
		r.Min = min(r.Min, s.Duration)
		r.Max = max(r.Max, s.Duration)
	}

	mean := sum / float64(count)
	// E[x²] - mean² can dip below zero through cancellation.
	variance := max(sumSq/float64(count)-mean*mean, 0)

	r.Mean = seconds(mean)
	r.StdDev = seconds(math.Sqrt(variance))
	r.LossRate = min(max(1-float64(count)/float64(attempted), 0), 1)
	return r
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// String returns a one-line summary suitable for a log line.
func (r Report) String() string {
	if r.NoData {
		return fmt.Sprintf("no data (0/%d acknowledged, loss %.2f%%)", r.Attempted, r.LossRate*100)
	}
	return fmt.Sprintf("rtt avg=%v sd=%v min=%v max=%v | loss %.2f%% | total %v | %d/%d",
		r.Mean, r.StdDev, r.Min, r.Max, r.LossRate*100, r.Total, r.Count, r.Attempted)
}
