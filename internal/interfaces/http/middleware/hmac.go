package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Заголовок с подписью webhook. CI сервер считает HMAC-SHA256 от тела
// запроса и кладет hex-представление сюда
const SignatureHeader = "X-Signature"

// Максимальный размер тела webhook запроса
const maxBodySize = 1 << 20

// HMACConfig — настройки верификации webhook подписи
type HMACConfig struct {
	// Secret пустой — верификация выключена
	Secret string

	// OnFailure дергается на каждой неудачной проверке (metrics hook)
	OnFailure func()
}

// HMAC middleware проверяет подпись тела запроса. Тело читается целиком
// и восстанавливается, чтобы handler мог прочитать его заново
func HMAC(cfg HMACConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				http.Error(w, "Failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !validSignature(cfg.Secret, body, r.Header.Get(SignatureHeader)) {
				log.Warn("Webhook signature verification failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				if cfg.OnFailure != nil {
					cfg.OnFailure()
				}
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validSignature(secret string, body []byte, header string) bool {
	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}
