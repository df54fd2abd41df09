package ml

import (
	"fmt"
	"log"
	"strings"
)

// Reporter observes the evaluation results of each finished epoch.
type Reporter interface {
	EpochEnd(epoch int, test PhaseStats)
}

type ReporterFunc func(epoch int, test PhaseStats)

func (f ReporterFunc) EpochEnd(epoch int, test PhaseStats) { f(epoch, test) }

// LogReporter prints the evaluation line of every Every-th epoch. Epochs are numbered
// from 0, as in EpochStats, and epoch 0 is always printed:
//
//	(Test) Epoch 3 | Loss: 0.1234 | Acc: 96.50%
type LogReporter struct {
	Logger      *log.Logger
	Every       int
	MetricNames []string
}

func (r *LogReporter) EpochEnd(epoch int, test PhaseStats) {
	every := r.Every
	if every <= 0 {
		every = 1
	}
	if epoch%every != 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "(Test) Epoch %d | Loss: %.4f", epoch, test.Loss)
	for i, v := range test.Metrics {
		name := fmt.Sprintf("metric_%d", i)
		if i < len(r.MetricNames) {
			name = r.MetricNames[i]
		}
		if name == "accuracy" {
			fmt.Fprintf(&sb, " | Acc: %.2f%%", v*100)
			continue
		}
		fmt.Fprintf(&sb, " | %s: %.4f", name, v)
	}
	if test.Batches == 0 {
		sb.WriteString(" | no test batches")
	}
	r.Logger.Print(sb.String())
}
