package match

import "github.com/sirupsen/logrus"

// Stage is a step of a match run.
type Stage int

const (
	StageCandidates Stage = iota
	StageQuery
	StageCompare
)

func (s Stage) String() string {
	switch s {
	case StageCandidates:
		return "candidates"
	case StageQuery:
		return "query"
	case StageCompare:
		return "compare"
	default:
		return "unknown"
	}
}

// Observer receives progress from Run. Implementations must not block.
type Observer interface {
	Stage(s Stage)
	CandidateEmbedded(name string)
	CandidateSkipped(name string, err error)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) Stage(Stage)                    {}
func (NopObserver) CandidateEmbedded(string)       {}
func (NopObserver) CandidateSkipped(string, error) {}

// LogObserver writes progress as structured log entries.
type LogObserver struct {
	Log logrus.FieldLogger
}

func (o LogObserver) Stage(s Stage) {
	o.Log.WithField("stage", s.String()).Debug("stage started")
}

func (o LogObserver) CandidateEmbedded(name string) {
	o.Log.WithField("candidate", name).Debug("candidate embedded")
}

func (o LogObserver) CandidateSkipped(name string, err error) {
	o.Log.WithField("candidate", name).WithError(err).Warn("skipping candidate")
}

// Observers fans progress out to several observers in order.
type Observers []Observer

func (obs Observers) Stage(s Stage) {
	for _, o := range obs {
		o.Stage(s)
	}
}

func (obs Observers) CandidateEmbedded(name string) {
	for _, o := range obs {
		o.CandidateEmbedded(name)
	}
}

func (obs Observers) CandidateSkipped(name string, err error) {
	for _, o := range obs {
		o.CandidateSkipped(name, err)
	}
}
