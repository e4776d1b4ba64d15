package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyReplacements(t *testing.T) {
	content := "a ![x](u) b ![x](u) c"

	tests := []struct {
		name         string
		replacements []Replacement
		want         string
	}{
		{"none", nil, content},
		{"first only", []Replacement{{Start: 2, End: 9, Text: "![x](d/0.png)"}}, "a ![x](d/0.png) b ![x](u) c"},
		{"second only", []Replacement{{Start: 12, End: 19, Text: "![x](d/1.png)"}}, "a ![x](u) b ![x](d/1.png) c"},
		{
			"both, given out of order",
			[]Replacement{{Start: 12, End: 19, Text: "B"}, {Start: 2, End: 9, Text: "A"}},
			"a A b B c",
		},
		{"whole string", []Replacement{{Start: 0, End: len(content), Text: ""}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyReplacements(content, tt.replacements))
		})
	}
}

func TestApplyReplacements_DoesNotReorderInput(t *testing.T) {
	reps := []Replacement{{Start: 5, End: 6, Text: "y"}, {Start: 0, End: 1, Text: "x"}}
	ApplyReplacements("abcdef", reps)
	assert.Equal(t, 5, reps[0].Start)
}

func TestImageTag(t *testing.T) {
	assert.Equal(t, "![alt text](intro/0.png)", ImageTag("alt text", "intro/0.png"))
	assert.Equal(t, "![](intro/1.jpg)", ImageTag("", "intro/1.jpg"))
}
