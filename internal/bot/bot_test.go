package bot

import "testing"

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	const game = "Base;InProgress;White[3];wS1;bG1 -wS1;wA1 wS1/"

	a := FingerprintOf(game)
	b := FingerprintOf(game)
	if a != b {
		t.Fatalf("same game string produced different fingerprints: %s vs %s", a, b)
	}
	if c := FingerprintOf(game + ";bA1 bG1-"); c == a {
		t.Fatalf("distinct game strings produced identical fingerprints")
	}
	if len(a.String()) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a.String()))
	}
	if len(a.Short()) != 16 {
		t.Fatalf("expected 16 hex chars for short form, got %d", len(a.Short()))
	}
}

func TestNewTurn(t *testing.T) {
	t.Parallel()

	b := &Bot{Name: "nokamute1", Endpoint: "/games/nokamute1"}
	turn := NewTurn(b, "Base;NotStarted;White[1]")

	if turn.ID == "" {
		t.Fatal("turn ID is empty")
	}
	if turn.Bot != b {
		t.Fatal("turn does not reference its owning bot")
	}
	if turn.Fingerprint != FingerprintOf("Base;NotStarted;White[1]") {
		t.Fatal("turn fingerprint does not match its game string")
	}
}
