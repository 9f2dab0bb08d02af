package diagnostics

import "testing"

func TestClassificationHelpersWrapErrdefsSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"NotFound", NotFound("port %q", "out"), IsNotFound},
		{"AlreadyExists", AlreadyExists("port %q", "out"), IsAlreadyExists},
		{"FailedPrecondition", FailedPrecondition("no BeginAddon"), IsFailedPrecondition},
		{"InvalidArgument", InvalidArgument("bad policy"), IsInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.is(tc.err) {
				t.Fatalf("expected %v to classify as %s", tc.err, tc.name)
			}
			if IsNotFound(tc.err) && tc.name != "NotFound" {
				t.Fatalf("%v unexpectedly also classifies as NotFound", tc.err)
			}
		})
	}
}

func TestAggregatorAddNilIsNoOp(t *testing.T) {
	var a Aggregator
	a.Add(nil)
	if a.Err() != nil {
		t.Fatalf("expected nil error after adding nil, got %v", a.Err())
	}
	if a.Len() != 0 {
		t.Fatalf("expected zero length, got %d", a.Len())
	}
}

func TestAggregatorAccumulates(t *testing.T) {
	var a Aggregator
	a.Add(NotFound("a"))
	a.Add(nil)
	a.Add(AlreadyExists("b"))

	if a.Len() != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", a.Len())
	}
	if a.Err() == nil {
		t.Fatal("expected a non-nil aggregated error")
	}
}
