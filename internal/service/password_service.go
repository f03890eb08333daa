package service

type PasswordService interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (rehashNeeded bool, ok bool)
}
