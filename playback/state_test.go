package playback

import (
	"encoding/json"
	"testing"
)

func TestStateJSON(t *testing.T) {
	for _, s := range []State{StateStopped, StatePaused, StateIdle, StateDispatching} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		var back State
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatal(err)
		}
		if back != s {
			t.Errorf("%s decoded as %s", s, back)
		}
	}

	var s State
	if err := json.Unmarshal([]byte(`"flying"`), &s); err == nil {
		t.Error("unknown state should fail")
	}
}

func TestStatusFor(t *testing.T) {
	if statusFor(0) != StatusEmpty || statusFor(2) != StatusNotEmpty {
		t.Error("statusFor mismatch")
	}
	if StateIdle.Running() != true || StatePaused.Running() {
		t.Error("Running mismatch")
	}
}
