package docerr

import (
	"errors"
	"testing"
)

func TestErrorString(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"with path", Configf("pkg/foo.go", "bad extension %s", ".xyz"), "configuration: pkg/foo.go: bad extension .xyz"},
		{"without path", Protocolf("", "missing marker %q", "<!--graph-->"), `protocol: missing marker "<!--graph-->"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.err.Error(); got != c.want {
				t.Errorf("Error() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transportf("internal/api.go", cause, "llm call failed")

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestConstructorsSetCategory(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want Category
	}{
		{"Configf", Configf("p", "x"), Configuration},
		{"Transportf", Transportf("p", nil, "x"), Transport},
		{"Protocolf", Protocolf("p", "x"), Protocol},
		{"Contentf", Contentf("p", "x"), Content},
		{"IOf", IOf("p", nil, "x"), IO},
		{"Checkpointf", Checkpointf("p", nil, "x"), Checkpoint},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.err.Category != c.want {
				t.Errorf("Category = %v, want %v", c.err.Category, c.want)
			}
		})
	}
}

func TestCancelledIsDistinctFromError(t *testing.T) {
	var target *Error
	if errors.As(Cancelled, &target) {
		t.Errorf("Cancelled should not unwrap into an *Error")
	}
}
