// Package textutil holds the text helpers plugins use to normalize titles:
// simplified/traditional Chinese conversion and fuzzy similarity.
package textutil

import (
	"sync"

	"github.com/longbridgeapp/opencc"
)

// Converters are built on first use; loading the OpenCC dictionaries costs
// a few milliseconds that commands never calling s2t/t2s should not pay.
var (
	s2tConverter = sync.OnceValues(func() (*opencc.OpenCC, error) { return opencc.New("s2t") })
	t2sConverter = sync.OnceValues(func() (*opencc.OpenCC, error) { return opencc.New("t2s") })
)

// S2T converts simplified Chinese in text to traditional Chinese, phrase
// first and then character by character. Text the converter cannot handle
// is returned unchanged.
func S2T(text string) string {
	return convert(s2tConverter, text)
}

// T2S converts traditional Chinese in text to simplified Chinese.
func T2S(text string) string {
	return convert(t2sConverter, text)
}

func convert(get func() (*opencc.OpenCC, error), text string) string {
	if text == "" {
		return text
	}
	cc, err := get()
	if err != nil {
		return text
	}
	out, err := cc.Convert(text)
	if err != nil {
		return text
	}
	return out
}
