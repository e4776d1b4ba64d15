package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/mdimg/pkg/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []models.ImageReference
	}{
		{
			name:    "no references",
			content: "# Title\n\nplain [link](https://example.com)\n",
			want:    nil,
		},
		{
			name:    "single reference",
			content: "before ![logo](https://example.com/logo.png) after",
			want: []models.ImageReference{
				{AltText: "logo", SourceURL: "https://example.com/logo.png", MatchedSpan: "![logo](https://example.com/logo.png)", Start: 7, End: 44},
			},
		},
		{
			name:    "empty alt and local path",
			content: "![](./img/a.png)",
			want: []models.ImageReference{
				{AltText: "", SourceURL: "./img/a.png", MatchedSpan: "![](./img/a.png)", Start: 0, End: 16},
			},
		},
		{
			name:    "url stops at first closing paren",
			content: "![x](http://a.com/b_(c).png)",
			want: []models.ImageReference{
				{AltText: "x", SourceURL: "http://a.com/b_(c", MatchedSpan: "![x](http://a.com/b_(c)", Start: 0, End: 23},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.content)
			assert.Equal(t, tt.want, got)
			for _, ref := range got {
				assert.Equal(t, ref.MatchedSpan, tt.content[ref.Start:ref.End])
			}
		})
	}
}

func TestExtract_OrderAndDuplicates(t *testing.T) {
	content := "![a](http://x/1.png)\n![b](data:image/png;base64,AAAA)\n![a](http://x/1.png)\n"

	refs := Extract(content)

	require.Len(t, refs, 3)
	assert.Equal(t, "http://x/1.png", refs[0].SourceURL)
	assert.Equal(t, "data:image/png;base64,AAAA", refs[1].SourceURL)
	assert.Equal(t, refs[0].MatchedSpan, refs[2].MatchedSpan)
	assert.NotEqual(t, refs[0].Start, refs[2].Start)
	assert.Less(t, refs[0].Start, refs[1].Start)
	assert.Less(t, refs[1].Start, refs[2].Start)
}

func TestAll_RestartableAndStoppable(t *testing.T) {
	content := "![1](http://a/1.png) ![2](http://a/2.png) ![3](http://a/3.png)"
	seq := All(content)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, second)

	var seen []string
	for ref := range seq {
		seen = append(seen, ref.AltText)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestIsNetworkURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/a.png", true},
		{"https://example.com/a.png", true},
		{"HTTP://example.com/a.png", false},
		{"./local.png", false},
		{"/abs/local.png", false},
		{"data:image/png;base64,AAAA", false},
		{"ftp://example.com/a.png", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNetworkURL(tt.url), "IsNetworkURL(%q)", tt.url)
	}
}

func TestNetworkReferences_IndexSkipsLocal(t *testing.T) {
	content := "![l](local.png) ![a](https://x/a.gif) ![d](data:x) ![b](http://x/b)"

	indexed := NetworkReferences(Extract(content))

	require.Len(t, indexed, 2)
	assert.Equal(t, 0, indexed[0].Index)
	assert.Equal(t, "https://x/a.gif", indexed[0].Ref.SourceURL)
	assert.Equal(t, 1, indexed[1].Index)
	assert.Equal(t, "http://x/b", indexed[1].Ref.SourceURL)
}

func TestNetworkReferences_Empty(t *testing.T) {
	assert.Empty(t, NetworkReferences(nil))
}
