// Package workflow owns the single WorkflowState of a camtrap process.
//
// The Controller walks one dataset through Idle, Selecting, Detecting and
// Reviewing. It starts the detection run, follows its progress stream on a
// goroutine, and hands export requests to an exportjob.Runner once the run
// has produced records. No controller method waits for a job to finish.
//
// Reset is the only way back from Detecting or Reviewing. It bumps a
// generation counter, so signals from a detached run or from exports
// submitted before the reset are dropped.
package workflow
