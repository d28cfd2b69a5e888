package jobs

type JobType string

const (
	JobSendWelcomeEmail JobType = "send_welcome_email"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobSendWelcomeEmail:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobProcessing, JobSucceeded, JobFailed:
		return true
	default:
		return false
	}
}
