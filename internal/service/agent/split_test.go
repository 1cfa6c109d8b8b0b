package agent_test

import (
	"testing"

	"github.com/nsxzhou/dualmind/internal/service/agent"
)

func TestSplitThinking(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		thinking string
		response string
	}{
		{
			name:     "marker",
			raw:      "先分析一下问题。\n\n[回复]\n最终答案。",
			thinking: "先分析一下问题。",
			response: "最终答案。",
		},
		{
			name:     "marker at start",
			raw:      "[回复]直接给答案",
			thinking: "",
			response: "直接给答案",
		},
		{
			name:     "first marker wins",
			raw:      "思考[回复]答案一[回复]答案二",
			thinking: "思考",
			response: "答案一[回复]答案二",
		},
		{
			name:     "paragraph fallback",
			raw:      "第一段思考。\n\n第二段思考。\n\n最后是答复。",
			thinking: "第一段思考。\n\n第二段思考。",
			response: "最后是答复。",
		},
		{
			name:     "single paragraph",
			raw:      "  只有一段内容。  ",
			thinking: "",
			response: "只有一段内容。",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			thinking, response := agent.SplitThinking(tc.raw)
			if thinking != tc.thinking {
				t.Fatalf("thinking: got %q want %q", thinking, tc.thinking)
			}
			if response != tc.response {
				t.Fatalf("response: got %q want %q", response, tc.response)
			}
		})
	}
}

func TestSplitThinkingMarkerRoundTrip(t *testing.T) {
	raw := "推理过程。\n\n[回复]\n结论。"
	thinking, response := agent.SplitThinking(raw)

	rejoined := thinking + "\n\n" + response
	if rejoined != "推理过程。\n\n结论。" {
		t.Fatalf("round trip lost content: %q", rejoined)
	}
}

func TestSplitThinkingLastParagraphIsResponse(t *testing.T) {
	raw := "a\n\nb\n\nc"
	_, response := agent.SplitThinking(raw)
	if response != "c" {
		t.Fatalf("expected last paragraph as response, got %q", response)
	}
}
