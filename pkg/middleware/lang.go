package middleware

import (
	"context"
	"net/http"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
)

type messagesKey struct{}

// Language picks the message catalog from the lang query parameter, falling
// back to Accept-Language and then to def.
func Language(def *i18n.Messages) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			msgs := def
			lang := r.URL.Query().Get("lang")
			accept := r.Header.Get("Accept-Language")
			if lang != "" || accept != "" {
				msgs = i18n.Lookup(lang, accept)
			}
			w.Header().Set("Content-Language", msgs.Tag.String())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), messagesKey{}, msgs)))
		})
	}
}

// Messages returns the catalog chosen by Language, or i18n.Default
func Messages(ctx context.Context) *i18n.Messages {
	if m, ok := ctx.Value(messagesKey{}).(*i18n.Messages); ok && m != nil {
		return m
	}
	return i18n.Default
}
