package subtitle

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-sig"
	EncodingGB18030 = "gb18030"
	EncodingGBK     = "gbk"
	EncodingBig5    = "big5"
	EncodingLatin1  = "latin-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type decodeCandidate struct {
	name string
	enc  encoding.Encoding
}

// decodeCandidates is tried in order; the first clean decode wins.
var decodeCandidates = []decodeCandidate{
	{name: EncodingUTF8},
	{name: EncodingUTF8BOM, enc: unicode.UTF8BOM},
	{name: EncodingGB18030, enc: simplifiedchinese.GB18030},
	{name: EncodingGBK, enc: simplifiedchinese.GBK},
	{name: EncodingBig5, enc: traditionalchinese.Big5},
}

// DecodeBytes decodes raw subtitle bytes and reports which encoding won.
// It never fails: when no candidate decodes cleanly the bytes are read as
// Latin-1, which maps every byte to some rune.
func DecodeBytes(raw []byte) (text string, encodingName string) {
	for _, c := range decodeCandidates {
		if out, ok := tryDecode(c, raw); ok {
			return out, c.name
		}
	}
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(out), EncodingLatin1
}

func tryDecode(c decodeCandidate, raw []byte) (string, bool) {
	switch c.name {
	case EncodingUTF8:
		// BOM-prefixed input is left to the marker-aware candidate so the BOM is dropped
		if bytes.HasPrefix(raw, utf8BOM) || !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	case EncodingUTF8BOM:
		if !bytes.HasPrefix(raw, utf8BOM) || !utf8.Valid(raw) {
			return "", false
		}
	}

	out, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD for invalid sequences instead of failing
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
