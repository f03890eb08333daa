package service

type OTPGenerator interface {
	Generate() (string, error)
}
