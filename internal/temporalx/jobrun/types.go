package jobrun

// Names shared by the job service that starts workflows and the worker that
// registers them.
const (
	WorkflowName = "job_run"
	ActivityRun  = "job_run_tick"
)

type RunResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}
