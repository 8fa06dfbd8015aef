// Package async provides helpers for running independent provisioning tasks
// concurrently.
package async

import (
	"context"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently and waits for all of them to
// finish. Task failures are independent: one failing task never interrupts
// its siblings. All failures are collected and returned as a single
// TaskErrors value so the caller can report each one.
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	var failed TaskErrors
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			failed = append(failed, TaskError{Name: res.name, Err: res.err})
		}
	}

	if len(failed) > 0 {
		return failed
	}
	return nil
}

// TaskError records the failure of a single named task.
type TaskError struct {
	Name string
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e TaskError) Unwrap() error {
	return e.Err
}

// TaskErrors aggregates failures from a parallel run.
type TaskErrors []TaskError

func (e TaskErrors) Error() string {
	if len(e) == 1 {
		return fmt.Sprintf("task %s failed: %v", e[0].Name, e[0].Err)
	}
	msg := fmt.Sprintf("%d tasks failed:", len(e))
	for _, te := range e {
		msg += fmt.Sprintf(" [%s: %v]", te.Name, te.Err)
	}
	return msg
}

// Unwrap exposes the individual task errors to errors.Is/As.
func (e TaskErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, te := range e {
		errs[i] = te
	}
	return errs
}
