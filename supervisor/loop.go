package supervisor

import (
	"context"
	"fmt"

	"github.com/datalyze-ai/datalyze/core"
)

// Stream answers a question and emits one Snapshot per loop iteration. The
// snapshot channel is unbuffered, so the loop advances only as fast as the
// consumer reads; cancelling ctx releases a blocked send. Both channels are
// closed when the run ends, and the error channel carries at most one
// terminal error.
func (s *Supervisor) Stream(ctx context.Context, sessionID, question string) (<-chan Snapshot, <-chan error) {
	snapCh := make(chan Snapshot)
	errCh := make(chan error, 1)

	go func() {
		defer close(snapCh)
		defer close(errCh)
		if err := s.run(ctx, sessionID, question, snapCh); err != nil {
			errCh <- err
		}
	}()

	return snapCh, errCh
}

// Run answers a question by draining the streaming loop and extracting the
// final answer from the collected snapshots.
func (s *Supervisor) Run(ctx context.Context, sessionID, question string) (string, error) {
	snapCh, errCh := s.Stream(ctx, sessionID, question)

	var snapshots []Snapshot
	for snap := range snapCh {
		snapshots = append(snapshots, snap)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return ExtractAnswer(snapshots), nil
}

func (s *Supervisor) run(ctx context.Context, sessionID, question string, snapCh chan<- Snapshot) error {
	sess, err := s.sessionFor(sessionID)
	if err != nil {
		return err
	}

	runID := core.NewID()
	questionContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: question}}}
	runCtx := core.NewRunContext(ctx, sessionID, runID, questionContent, sess, s.store, s.logger)

	if err := runCtx.Append(core.NewUserMessageEvent(runID, question)); err != nil {
		return err
	}

	s.logger.Info("supervisor.run.start", "session", sessionID, "run", runID)

	var lastDelegate string
	var lastHandbackEmpty bool

	for iter := 1; iter <= s.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		decision, err := s.policy.Decide(runCtx)
		if err != nil {
			s.logger.Error("supervisor.decide.failed", "run", runID, "iteration", iter, "error", err.Error())
			return err
		}

		supUpdate := NodeUpdate{Node: s.name, Events: decision.Events}

		if decision.Delegate == "" {
			s.logger.Info("supervisor.run.finished", "run", runID, "iterations", iter)
			return send(ctx, snapCh, Snapshot{Iteration: iter, State: StateTerminal, Updates: []NodeUpdate{supUpdate}})
		}

		worker, ok := s.workers[decision.Delegate]
		if !ok {
			return fmt.Errorf("policy delegated to unknown agent %q", decision.Delegate)
		}

		// A repeated delegation right after an empty handback would loop
		// forever; end the run instead.
		if lastHandbackEmpty && decision.Delegate == lastDelegate {
			s.logger.Warn("supervisor.run.stalled", "run", runID, "agent", decision.Delegate)
			stop := core.NewMessageEvent(runID, s.name,
				fmt.Sprintf("Stopping: %s produced no new output on its last turn.", decision.Delegate))
			if err := runCtx.Append(stop); err != nil {
				return err
			}
			supUpdate.Events = append(supUpdate.Events, stop)
			return send(ctx, snapCh, Snapshot{Iteration: iter, State: StateTerminal, Updates: []NodeUpdate{supUpdate}})
		}

		handoff := core.NewHandoffEvent(runID, s.name, decision.Delegate)
		if err := runCtx.Append(handoff); err != nil {
			return err
		}
		supUpdate.Events = append(supUpdate.Events, handoff)

		s.logger.Debug("supervisor.delegate", "run", runID, "iteration", iter, "agent", decision.Delegate)

		workerEvents, err := worker.Respond(runCtx)
		if err != nil {
			s.logger.Error("supervisor.worker.failed", "run", runID, "agent", decision.Delegate, "error", err.Error())
			return err
		}

		handback := core.NewHandoffEvent(runID, decision.Delegate, s.name)
		if err := runCtx.Append(handback); err != nil {
			return err
		}

		lastDelegate = decision.Delegate
		lastHandbackEmpty = !anySubstantive(workerEvents)

		workerUpdate := NodeUpdate{Node: decision.Delegate, Events: append(workerEvents, handback)}
		snap := Snapshot{Iteration: iter, State: StateDelegated, Updates: []NodeUpdate{supUpdate, workerUpdate}}
		if err := send(ctx, snapCh, snap); err != nil {
			return err
		}
	}

	s.logger.Warn("supervisor.run.iteration_limit", "run", runID, "limit", s.maxIterations)

	limit := core.NewMessageEvent(runID, s.name,
		fmt.Sprintf("Reached the iteration limit (%d) without a final answer.", s.maxIterations))
	if err := runCtx.Append(limit); err != nil {
		return err
	}
	final := Snapshot{
		Iteration: s.maxIterations + 1,
		State:     StateTerminal,
		Updates:   []NodeUpdate{{Node: s.name, Events: []core.Event{limit}}},
	}
	return send(ctx, snapCh, final)
}

func send(ctx context.Context, ch chan<- Snapshot, snap Snapshot) error {
	select {
	case ch <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func anySubstantive(events []core.Event) bool {
	for _, ev := range events {
		if ev.IsSubstantive() {
			return true
		}
	}
	return false
}
