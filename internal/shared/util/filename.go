package util

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFileNameRunes = 255

var ErrInvalidFileName = errors.New("invalid file name")

// DisplayFileName cleans a client-supplied file name for storage in the
// document record and Content-Disposition. Directory parts and control
// characters are dropped; the result is never used as a storage path.
func DisplayFileName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", ErrInvalidFileName
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidFileName
	}
	if utf8.RuneCountInString(name) > maxFileNameRunes {
		runes := []rune(name)
		name = string(runes[:maxFileNameRunes])
	}
	return name, nil
}
