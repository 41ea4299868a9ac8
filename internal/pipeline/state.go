package pipeline

// State is a step of a pipeline run.
type State string

const (
	StateReceivedRequest State = "received_request"
	StateValidated       State = "validated"
	StatePromptBuilt     State = "prompt_built"
	StateModelInvoked    State = "model_invoked"
	StateSanitized       State = "sanitized"
	StateSchemaValidated State = "schema_validated"
	StatePersisted       State = "persisted"
	StateResponded       State = "responded"
	StateErrored         State = "errored"
)

// Observer receives every state a run enters, in order. A run that fails
// ends in StateErrored.
type Observer func(State)

type run struct {
	obs   Observer
	state State
}

func newRun(obs Observer) *run {
	r := &run{obs: obs}
	r.to(StateReceivedRequest)
	return r
}

func (r *run) to(s State) {
	r.state = s
	if r.obs != nil {
		r.obs(s)
	}
}

// fail moves the run to StateErrored and returns e as an error.
func (r *run) fail(e *Error) error {
	r.to(StateErrored)
	return e
}
