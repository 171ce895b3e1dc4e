package jobs

type JobType string

const (
	JobRatingReceived JobType = "rating.received"
	JobWelcomeUser    JobType = "user.welcome"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case JobRatingReceived, JobWelcomeUser:
		return true
	default:
		return false
	}
}
