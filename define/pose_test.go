package define

import "testing"

func TestPoseFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Pose
		ok   bool
	}{
		{"fist", POSE_FIST, true},
		{"close", POSE_FIST, true},
		{" Open ", POSE_RELAXED, true},
		{"1", POSE_FIST, true},
		{"wave", IdlePose, false},
	}
	for _, c := range cases {
		got, ok := PoseFromString(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("PoseFromString(%q) = %v,%v; want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestControlModeFromString(t *testing.T) {
	for in, want := range map[string]ControlMode{
		"myo":    MODE_POSE_CLASSIFIER,
		"FSR":    MODE_ALT_SENSOR,
		"manual": MODE_MANUAL,
	} {
		got, ok := ControlModeFromString(in)
		if !ok || got != want {
			t.Errorf("ControlModeFromString(%q) = %v,%v", in, got, ok)
		}
	}
	if _, ok := ControlModeFromString("autopilot"); ok {
		t.Error("expected unknown mode to be rejected")
	}
}

func TestPoseValid(t *testing.T) {
	if !POSE_FIST.Valid() || Pose(7).Valid() {
		t.Fatal("Valid() disagrees with KnownPoses")
	}
}
