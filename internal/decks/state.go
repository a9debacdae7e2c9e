package decks

// Action names an asynchronous operation tracked by a playback session.
type Action string

const (
	ActionFetchOriginal   Action = "fetch-original"
	ActionFetchGenerated  Action = "fetch-generated"
	ActionFetchScript     Action = "fetch-script"
	ActionUploadMaterials Action = "upload-materials"
)

// Actions lists every tracked action in display order.
var Actions = []Action{
	ActionFetchOriginal,
	ActionFetchGenerated,
	ActionFetchScript,
	ActionUploadMaterials,
}

// AudioAction returns the action that tracks fetching audio of kind.
func AudioAction(kind AudioKind) Action {
	if kind == AudioGenerated {
		return ActionFetchGenerated
	}
	return ActionFetchOriginal
}

// Status is the tri-state of an OpState.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// OpState is the idle/loading/error state of one action. Message is only
// set when Status is StatusError.
type OpState struct {
	Status  Status
	Message string
}

func Idle() OpState    { return OpState{Status: StatusIdle} }
func Loading() OpState { return OpState{Status: StatusLoading} }

// Failed builds an error state carrying msg.
func Failed(msg string) OpState {
	return OpState{Status: StatusError, Message: msg}
}

func (s OpState) IsLoading() bool { return s.Status == StatusLoading }
func (s OpState) IsError() bool   { return s.Status == StatusError }
