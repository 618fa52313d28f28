package models_test

import (
	"reflect"
	"testing"

	"bitbucket.org/sitefocus/qctrack_backend/models"
)

func TestParseCommentMentions(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single mention",
			text: "Looks good @sarah.chen",
			want: []string{"sarah"},
		},
		{
			name: "multiple mentions keep first-appearance order",
			text: "@mike please review, cc @lisa and @mike again",
			want: []string{"mike", "lisa"},
		},
		{
			name: "hyphen and underscore allowed",
			text: "ping @site-lead and @qc_manager",
			want: []string{"site-lead", "qc_manager"},
		},
		{
			name: "no mentions",
			text: "Rebar spacing verified at grid B4.",
			want: nil,
		},
		{
			name: "bare at sign is not a mention",
			text: "meet @ the east gate",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := models.ParseCommentMentions(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseCommentMentions(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestCommentReactionMap(t *testing.T) {
	c := &models.Comment{Reactions: `{"👍":["mike","lisa"],"🔥":["sarah"]}`}
	reactions := c.ReactionMap()
	if len(reactions["👍"]) != 2 || reactions["👍"][0] != "mike" {
		t.Fatalf("unexpected thumbs-up bucket: %v", reactions["👍"])
	}
	if len(reactions["🔥"]) != 1 {
		t.Fatalf("unexpected fire bucket: %v", reactions["🔥"])
	}

	empty := &models.Comment{}
	if got := empty.ReactionMap(); len(got) != 0 {
		t.Fatalf("empty reactions should decode to empty map, got %v", got)
	}

	malformed := &models.Comment{Reactions: "{not json"}
	if got := malformed.ReactionMap(); len(got) != 0 {
		t.Fatalf("malformed reactions should decode to empty map, got %v", got)
	}
}
