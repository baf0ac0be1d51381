package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS2T(t *testing.T) {
	assert.Equal(t, "國語電視劇", S2T("国语电视剧"))
	assert.Equal(t, "學習書", S2T("学习书"))
	assert.Equal(t, "abc 123", S2T("abc 123"))
	assert.Equal(t, "", S2T(""))
}

func TestS2TPhrases(t *testing.T) {
	// 发 has two traditional forms; the phrase decides which.
	assert.Equal(t, "頭髮", S2T("头发"))
	assert.Equal(t, "發現", S2T("发现"))
}

func TestS2TMixedText(t *testing.T) {
	assert.Equal(t, "第1集 電影 HD", S2T("第1集 电影 HD"))
}

func TestT2S(t *testing.T) {
	assert.Equal(t, "国语电视剧", T2S("國語電視劇"))
	assert.Equal(t, "爱", T2S("愛"))
}

func TestS2TRoundTrip(t *testing.T) {
	for _, s := range []string{"电影", "动漫", "综艺节目", "纪录片"} {
		assert.Equal(t, s, T2S(S2T(s)), s)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"same", "same", 1},
		{"", "x", 0},
		{"x", "", 0},
		{"Hello", "hello", 1},
		{"kitten", "sitting", 4.0 / 7.0},
		{"流浪地球", "流浪地球2", 4.0 / 5.0},
		{"ＡＢＣ", "abc", 1},
		{"abcd", "wxyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEditDistanceCountsCharacters(t *testing.T) {
	assert.Equal(t, 1, EditDistance("流浪地球", "流浪地求"))
	assert.Equal(t, 3, EditDistance("kitten", "sitting"))
	assert.Equal(t, 0, EditDistance("", ""))
}

func TestProxyURL(t *testing.T) {
	assert.Equal(t, "", ProxyURL(false, "", 0))
	assert.Equal(t, "http://127.0.0.1:8080", ProxyURL(true, "", 0))
	assert.Equal(t, "http://10.0.0.2:9978", ProxyURL(true, "10.0.0.2", 9978))
}
