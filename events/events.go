// Package events broadcasts pipeline step-boundary progress, generalizing
// an action Sink/Broadcaster pair from webhook delivery of registry actions
// to in-process delivery of egg pipeline steps. The CLI's -v/--verbose
// logger is wired in as the default sink; nothing else in this module
// depends on go-events, so losing a broadcast never affects correctness,
// only the step-boundary narration. Download progress is not an event: the
// runtime package logs it directly through eggcontext.
package events

import (
	"context"
	"fmt"

	dockerevents "github.com/docker/go-events"
	"github.com/henhouse/egg/eggcontext"
)

// Step is one pipeline progress event: a named pipeline ("build", "hatch",
// ...), the step within it, and a free-form human message.
type Step struct {
	Pipeline string
	Step     string
	Message  string
}

func (s Step) String() string {
	return fmt.Sprintf("%s/%s: %s", s.Pipeline, s.Step, s.Message)
}

// loggerSink writes every event to the eggcontext logger carried by ctx.
type loggerSink struct {
	ctx context.Context
}

func (s *loggerSink) Write(event dockerevents.Event) error {
	eggcontext.GetLogger(s.ctx).Infof("%v", event)
	return nil
}

func (s *loggerSink) Close() error { return nil }

// Broadcaster wraps a docker/go-events Broadcaster pre-wired with a logging
// sink; callers may Add additional sinks (e.g. metrics) with AddSink.
type Broadcaster struct {
	b *dockerevents.Broadcaster
}

// NewBroadcaster returns a Broadcaster that logs every Step through ctx's
// logger.
func NewBroadcaster(ctx context.Context) *Broadcaster {
	return &Broadcaster{b: dockerevents.NewBroadcaster(&loggerSink{ctx: ctx})}
}

// AddSink registers an additional sink (e.g. a metrics counter).
func (b *Broadcaster) AddSink(sink dockerevents.Sink) error {
	return b.b.Add(sink)
}

// Publish writes a Step event to every registered sink.
func (b *Broadcaster) Publish(pipeline, step, format string, args ...interface{}) {
	_ = b.b.Write(Step{Pipeline: pipeline, Step: step, Message: fmt.Sprintf(format, args...)})
}

// Close shuts down every registered sink.
func (b *Broadcaster) Close() error {
	return b.b.Close()
}
