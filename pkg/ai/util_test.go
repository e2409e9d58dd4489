package ai

import (
	"reflect"
	"testing"
)

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  MentionsResponse
	}{
		{
			name:  "plain json",
			input: `{"mentions":[{"name":"NATO","type":"organization","confidence":0.9}]}`,
			want: MentionsResponse{Mentions: []MentionPayload{
				{Name: "NATO", Type: "organization", Confidence: 0.9},
			}},
		},
		{
			name: "fenced json",
			input: "```json\n" +
				`{"mentions":[{"name":"NATO","type":"organization","confidence":0.9}]}` +
				"\n```",
			want: MentionsResponse{Mentions: []MentionPayload{
				{Name: "NATO", Type: "organization", Confidence: 0.9},
			}},
		},
		{
			name:  "trailing comma repaired",
			input: `{"mentions":[{"name":"NATO","type":"organization","confidence":0.9},]}`,
			want: MentionsResponse{Mentions: []MentionPayload{
				{Name: "NATO", Type: "organization", Confidence: 0.9},
			}},
		},
		{
			name:  "double encoded",
			input: `"{\"mentions\":[{\"name\":\"NATO\",\"type\":\"organization\",\"confidence\":0.9}]}"`,
			want: MentionsResponse{Mentions: []MentionPayload{
				{Name: "NATO", Type: "organization", Confidence: 0.9},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got MentionsResponse
			if err := UnmarshalFlexible(tt.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToMentionsDropsAndClamps(t *testing.T) {
	resp := MentionsResponse{Mentions: []MentionPayload{
		{Name: "", Type: "person", Confidence: 0.5},
		{Name: "Angela Merkel", Type: "person", Confidence: 1.7},
		{Name: "EU", Type: "organization", Confidence: -0.2},
	}}

	mentions := resp.ToMentions()
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(mentions))
	}
	if mentions[0].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %f", mentions[0].Confidence)
	}
	if mentions[1].Confidence != 0 {
		t.Fatalf("expected confidence clamped to 0, got %f", mentions[1].Confidence)
	}
}
