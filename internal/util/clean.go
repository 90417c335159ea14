// Package util holds small text helpers shared by the CLI and services.
package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const maxBinaryCheckBytes = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Whitespace look-alikes that confuse the model and the category match.
var charReplacementMap = map[string]string{
	"\u00a0": " ", // no-break space
	"\u200b": "",  // zero width space
	"\u200d": "",  // zero width joiner
	"\ufeff": "",  // stray BOM inside the text
}

// IsLikelyBinary reports whether the first bytes of the file contain a NUL.
func IsLikelyBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, maxBinaryCheckBytes)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	return bytes.Contains(buffer[:n], []byte{0}), nil
}

// CleanText strips a leading BOM, replaces invalid UTF-8 and invisible
// characters, and trims surrounding whitespace. src names the input in logs.
func CleanText(raw []byte, src string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		log.Warnf("%s: invalid UTF-8, replacing invalid chars", src)
		raw = bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))
	}

	str := string(raw)
	for bad, good := range charReplacementMap {
		str = strings.ReplaceAll(str, bad, good)
	}

	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after replacements: %s", src)
	}
	return strings.TrimSpace(str), nil
}
