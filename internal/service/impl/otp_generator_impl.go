package impl

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// OTPGeneratorImpl draws six-digit codes uniformly from [100000, 999999].
type OTPGeneratorImpl struct {
	rand io.Reader
}

func NewOTPGenerator() *OTPGeneratorImpl {
	return &OTPGeneratorImpl{rand: rand.Reader}
}

func (g *OTPGeneratorImpl) Generate() (string, error) {
	n, err := rand.Int(g.rand, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
