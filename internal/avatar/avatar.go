// Package avatar renders initials avatars as SVG data URIs.
package avatar

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finreport/internal/cache"
)

const dataURIPrefix = "data:image/svg+xml;base64,"

// Initials returns the uppercased first letters of the first and last word of
// name, or "?" when name is blank.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	first, _ := utf8.DecodeRuneInString(words[0])
	if len(words) == 1 {
		return string(unicode.ToUpper(first))
	}
	last, _ := utf8.DecodeRuneInString(words[len(words)-1])
	return string(unicode.ToUpper(first)) + string(unicode.ToUpper(last))
}

// Color derives a background colour from name and a variant number.
func Color(name string, variant int) (r, g, b uint8) {
	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(name)))
	if variant > 0 {
		h.Write([]byte("#" + strconv.Itoa(variant)))
	}
	sum := h.Sum32()
	return uint8(sum>>16) % 255, uint8(sum>>8) % 255, uint8(sum) % 255
}

// TextColor picks black or white text for the background by perceived
// brightness.
func TextColor(r, g, b uint8) string {
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		return "#000000"
	}
	return "#FFFFFF"
}

// SVG renders the avatar image for name.
func SVG(name string, variant int) string {
	r, g, b := Color(name, variant)
	return fmt.Sprintf(`<svg width="90" height="90" xmlns="http://www.w3.org/2000/svg">`+
		`<rect width="90" height="90" fill="rgb(%d, %d, %d)" rx="45"/>`+
		`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" `+
		`font-family="Arial, sans-serif" font-size="36" font-weight="bold" fill="%s">%s</text></svg>`,
		r, g, b, TextColor(r, g, b), html.EscapeString(Initials(name)))
}

// DataURI renders the avatar as a base64 SVG data URI.
func DataURI(name string, variant int) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString([]byte(SVG(name, variant)))
}

type entry struct {
	name    string
	variant int
	uri     string
}

// Service caches one avatar per user.
type Service struct {
	cache *cache.LRUCache[entry]
}

func NewService(size int, ttl time.Duration) *Service {
	return &Service{cache: cache.NewLRUCache[entry](size, ttl)}
}

// Cache exposes the underlying cache for expiry by a cache.Manager.
func (s *Service) Cache() cache.Cleaner {
	return s.cache
}

// Get returns the user's cached avatar, generating it on first use or when
// the name changed.
func (s *Service) Get(userID int64, name string) string {
	key := cacheKey(userID)
	if e, ok := s.cache.Get(key); ok && e.name == name {
		return e.uri
	}
	e := entry{name: name, uri: DataURI(name, 0)}
	s.cache.Set(key, e)
	return e.uri
}

// Regenerate replaces the user's avatar with a new colour variant.
func (s *Service) Regenerate(userID int64, name string) string {
	key := cacheKey(userID)
	variant := 1
	if e, ok := s.cache.Get(key); ok {
		variant = e.variant + 1
	}
	e := entry{name: name, variant: variant, uri: DataURI(name, variant)}
	s.cache.Set(key, e)
	return e.uri
}

func cacheKey(userID int64) string {
	return "u" + strconv.FormatInt(userID, 10) + ":avatar"
}
