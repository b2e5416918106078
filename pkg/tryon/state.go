package tryon

// State は1回の生成操作の進行状態です。
type State int

const (
	StateIdle State = iota
	StateValidating
	StateStaging
	StateRequesting
	StateDecoding
	StateDisplaying
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateValidating: "validating",
	StateStaging:    "staging",
	StateRequesting: "requesting",
	StateDecoding:   "decoding",
	StateDisplaying: "displaying",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Busy は外部呼び出しを含む処理中の状態かどうかを返します。
func (s State) Busy() bool {
	switch s {
	case StateValidating, StateStaging, StateRequesting, StateDecoding:
		return true
	}
	return false
}

// Observer は状態遷移ごとに呼ばれます。
type Observer func(State)
