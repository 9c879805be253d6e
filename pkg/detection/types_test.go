package detection

import "testing"

func TestHasClass(t *testing.T) {
	dets := []Detection{
		{ClassName: "person", Confidence: 0.9},
		{ClassName: "dog", Confidence: 0.6},
		{ClassName: "", Confidence: 0.5},
	}

	if !HasClass(dets, "person") {
		t.Error("should find person")
	}
	if HasClass(dets, "cat") {
		t.Error("should not find cat")
	}
	if HasClass(nil, "person") {
		t.Error("empty slice has no classes")
	}
}

func TestBoxArea(t *testing.T) {
	b := Box{X: 10, Y: 20, W: 30, H: 40}
	if b.Area() != 1200 {
		t.Errorf("Area = %v, want 1200", b.Area())
	}
}

func TestMockScriptedResults(t *testing.T) {
	mock := &Mock{
		Results: [][]Detection{
			{{ClassName: "person"}},
			{},
		},
	}

	first, err := mock.Detect(nil)
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if len(first) != 1 || first[0].ClassName != "person" {
		t.Errorf("first frame = %v, want one person", first)
	}

	second, _ := mock.Detect(nil)
	if len(second) != 0 {
		t.Errorf("second frame = %v, want empty", second)
	}

	// Past the end of the script the last frame repeats.
	third, _ := mock.Detect(nil)
	if len(third) != 0 {
		t.Errorf("third frame = %v, want empty", third)
	}

	if mock.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", mock.Calls())
	}
}
