package runtime

import (
	"fmt"
	"time"

	"github.com/yungbote/obe-backend/internal/domain/jobs"
)

type MissingHandlerError struct{ JobType string }

func (e *MissingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("job handler panic: %v", e.Val) }

// Execute runs the handler for jc.Job and guarantees the row ends in a
// terminal state. The returned error is the run's failure, if any.
func Execute(reg *Registry, jc *Context, heartbeatEvery time.Duration) (err error) {
	h, ok := reg.Get(jc.Job.JobType)
	if !ok {
		err = &MissingHandlerError{JobType: jc.Job.JobType}
		jc.Fail("dispatch", err)
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	if heartbeatEvery > 0 {
		go func() {
			t := time.NewTicker(heartbeatEvery)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-jc.Ctx.Done():
					return
				case <-t.C:
					jc.Heartbeat()
				}
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			jc.Log.Error("Job handler panic", "panic", r)
			err = &PanicError{Val: r}
			jc.Fail("panic", err)
		}
	}()

	if err = h.Run(jc); err != nil {
		if jc.Job.Status != jobs.StatusFailed {
			jc.Fail("run", err)
		}
		return err
	}
	if jc.Job.Status != jobs.StatusSucceeded {
		jc.Succeed("done", nil)
	}
	return nil
}
