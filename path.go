package mscfb

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf16"
)

const MAX_NAME_LEN int = 31

type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
)

func ValidateName(name string) error {
	if len(utf16.Encode([]rune(name))) > MAX_NAME_LEN {
		return fmt.Errorf("name is too long: %v", name)
	}
	if strings.ContainsAny(name, "/\\:!") {
		return fmt.Errorf("name contains one of /\\:! characters: %v", name)
	}

	return nil
}

// CompareNames orders names the way CFB sibling trees do: shorter UTF-16
// names first, then code unit by code unit after simple upper-casing.
func CompareNames(nameLeft, nameRight string) Ordering {
	left := utf16.Encode([]rune(nameLeft))
	right := utf16.Encode([]rune(nameRight))

	if len(left) != len(right) {
		if len(left) < len(right) {
			return OrderLess
		}
		return OrderGreater
	}

	for i := range left {
		l := upperUnit(left[i])
		r := upperUnit(right[i])
		if l < r {
			return OrderLess
		}
		if l > r {
			return OrderGreater
		}
	}

	return OrderEqual
}

func upperUnit(u uint16) uint16 {
	if utf16.IsSurrogate(rune(u)) {
		return u
	}
	up := unicode.ToUpper(rune(u))
	if up > 0xffff {
		return u
	}
	return uint16(up)
}

func NameChainFromPath(s string) []string {
	s = path.Clean(s)
	if s == "" || s == "." {
		return []string{}
	}

	if s[0] == '/' {
		s = s[1:]
	}

	if s == "" {
		return []string{}
	}

	if strings.HasPrefix(s, "..") {
		return []string{}
	}

	return strings.Split(s, "/")
}

func PathFromNameChain(names []string) string {
	return "/" + strings.Join(names, "/")
}
