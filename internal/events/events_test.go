package events

import "testing"

func TestMultiFansOut(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	multi := Multi{first, nil, second}

	multi.Emit(Event{Type: TypePortfolioPurchased, Attributes: map[string]string{"token_id": "1"}})
	multi.Emit(Event{Type: TypePortfolioSold})

	if got := len(first.Events()); got != 2 {
		t.Fatalf("first recorder: want 2 events, got %d", got)
	}
	if got := len(second.OfType(TypePortfolioSold)); got != 1 {
		t.Fatalf("second recorder: want 1 sold event, got %d", got)
	}
}
