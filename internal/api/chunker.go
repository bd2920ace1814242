package api

import "unicode/utf8"

// utf8Chunker turns arbitrary byte reads into text without splitting a rune across chunks.
type utf8Chunker struct {
	pending []byte
}

func newUTF8Chunker() *utf8Chunker {
	return &utf8Chunker{}
}

func (u *utf8Chunker) feed(p []byte) string {
	data := append(u.pending, p...)
	cut := len(data)

	// hold back at most one incomplete rune at the tail
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if utf8.RuneStart(b) {
			if !utf8.FullRune(data[len(data)-i:]) {
				cut = len(data) - i
			}
			break
		}
	}

	u.pending = append([]byte(nil), data[cut:]...)
	return string(data[:cut])
}

func (u *utf8Chunker) flush() string {
	rest := string(u.pending)
	u.pending = nil
	return rest
}
