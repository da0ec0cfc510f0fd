package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrSignatureMismatch возвращается, если подпись платежа не совпала.
var ErrSignatureMismatch = errors.New("payment verification failed")

// ErrSigningSecretMissing возвращается, если секрет шлюза не задан: с пустым ключом подпись может посчитать кто угодно.
var ErrSigningSecretMissing = errors.New("payment gateway secret is not configured")

// GeneratePaymentSignature вычисляет HMAC-SHA256(secret, orderID|paymentID) в hex.
func GeneratePaymentSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature сравнивает подпись клиента с ожидаемой за постоянное время.
// Пустой секрет не подтверждает ни одну подпись.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := GeneratePaymentSignature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
