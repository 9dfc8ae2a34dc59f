package llm

import "testing"

func TestSplitSystem(t *testing.T) {
	conv := SplitSystem([]Message{
		NewSystemMessage("be brief"),
		NewUserMessage("hi"),
		NewAssistantMessage("hello"),
		NewSystemMessage("answer in spanish"),
		NewUserMessage("again"),
	})

	if len(conv.System) != 2 || conv.System[1] != "answer in spanish" {
		t.Fatalf("unexpected system parts %v", conv.System)
	}
	if len(conv.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(conv.Turns))
	}
	if conv.Turns[0].Content != "hi" || conv.Turns[2].Content != "again" {
		t.Fatalf("turn order not preserved: %+v", conv.Turns)
	}
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(WithModel("m"), nil, WithTemperature(0.2), WithStop("END"))
	if o.Model != "m" || o.Temperature == nil || *o.Temperature != 0.2 {
		t.Fatalf("unexpected options %+v", o)
	}
	if o.MaxTokens != nil || o.TopP != nil {
		t.Fatal("unset options must stay nil")
	}
	if len(o.Stop) != 1 {
		t.Fatalf("unexpected stop %v", o.Stop)
	}
}
