package catalog

import (
	"math"
	"testing"
)

func TestCostLinearity(t *testing.T) {
	p := DefaultPricing()
	const model = "openai/gpt-4o"
	base := p.Cost(model, 1000)
	if base <= 0 {
		t.Fatalf("Cost(%s, 1000) = %f, want > 0", model, base)
	}
	for _, mult := range []int64{2, 5, 10} {
		got := p.Cost(model, 1000*mult)
		want := base * float64(mult)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Cost(%s, %d) = %f, want %f", model, 1000*mult, got, want)
		}
	}
}

func TestCostZeroAndNegativeTokens(t *testing.T) {
	p := DefaultPricing()
	if got := p.Cost("openai/gpt-4o", 0); got != 0 {
		t.Fatalf("Cost(. , 0) = %f, want 0", got)
	}
	if got := p.Cost("openai/gpt-4o", -50); got != 0 {
		t.Fatalf("Cost(. , -50) = %f, want 0", got)
	}
}

func TestCostUnknownModelUsesDefaultRate(t *testing.T) {
	p := DefaultPricing()
	got := p.Cost("mystery/model-x", 1000)
	if math.Abs(got-DefaultRatePerThousand) > 1e-9 {
		t.Fatalf("Cost(unknown, 1000) = %f, want %f", got, DefaultRatePerThousand)
	}
}

func TestProviderOf(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "openai/gpt-4o", want: "openai"},
		{input: "anthropic/claude-3-haiku", want: "anthropic"},
		{input: "no-namespace", want: ""},
	}
	for _, tc := range cases {
		if got := ProviderOf(tc.input); got != tc.want {
			t.Fatalf("ProviderOf(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
