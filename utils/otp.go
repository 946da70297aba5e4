// utils/otp.go
package utils

import (
	"crypto/rand"
	"math/big"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// GenerateCode generates a random numeric verification code of CodeLength
// digits, uniformly distributed over 000000-999999.
func GenerateCode() (string, error) {
	const digits = "0123456789"
	result := make([]byte, CodeLength)
	for i := 0; i < CodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		result[i] = digits[num.Int64()]
	}
	return string(result), nil
}
