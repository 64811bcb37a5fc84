package google

// AttemptState is the position of one dispatch in its attempt cycle.
//
//	Pending -> TokenValid | TokenRefreshing -> Sent -> Success
//	                                                 -> RetryableFailure -> Pending
//	                                                 -> TerminalFailure
type AttemptState int

const (
	StatePending AttemptState = iota
	StateTokenValid
	StateTokenRefreshing
	StateSent
	StateSuccess
	StateRetryableFailure
	StateTerminalFailure
)

var stateNames = [...]string{
	StatePending:          "pending",
	StateTokenValid:       "token_valid",
	StateTokenRefreshing:  "token_refreshing",
	StateSent:             "sent",
	StateSuccess:          "success",
	StateRetryableFailure: "retryable_failure",
	StateTerminalFailure:  "terminal_failure",
}

func (s AttemptState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateHook observes attempt transitions. attempt counts HTTP sends from 1;
// it is 0 before the first send.
type StateHook func(attempt int, state AttemptState)
