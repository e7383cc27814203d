package smtp

import "fmt"

// Stage names the delivery step that failed.
type Stage string

const (
	StageConnect Stage = "connect"
	StageProxy   Stage = "proxy"
	StageTLS     Stage = "tls"
	StageAuth    Stage = "auth"
	StageSend    Stage = "send"
)

// DeliveryError wraps the failure of a single delivery attempt. There
// is no automatic retry; the caller sees exactly one of these per
// attempted notification.
type DeliveryError struct {
	Stage Stage
	cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Stage, e.cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.cause
}
