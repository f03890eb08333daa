package impl

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/events"
	"anichat/internal/observability/metrics"
	"anichat/internal/observability/middleware"
	"anichat/internal/service"
	"anichat/internal/store"

	"github.com/google/uuid"
)

const DefaultOTPTTL = 5 * time.Minute

type AuthServiceImpl struct {
	Store           dataStore
	PasswordService service.PasswordService
	TService        service.TokenService
	OTP             service.OTPGenerator
	Email           service.EmailService
	Images          service.ImageStore
	Events          events.Recorder
	OTPTTL          time.Duration

	now       func() time.Time
	dummyOnce sync.Once
	dummyHash string
}

func NewAuthServiceImpl(
	st *store.Store,
	passwordService service.PasswordService,
	tokenService service.TokenService,
	otp service.OTPGenerator,
	mail service.EmailService,
	images service.ImageStore,
	otpTTL time.Duration,
) *AuthServiceImpl {
	if otpTTL <= 0 {
		otpTTL = DefaultOTPTTL
	}
	return &AuthServiceImpl{
		Store:           gormStoreAdapter{store: st},
		PasswordService: passwordService,
		TService:        tokenService,
		OTP:             otp,
		Email:           mail,
		Images:          images,
		Events:          events.LogRecorder{},
		OTPTTL:          otpTTL,
	}
}

type dataStore interface {
	storeTx
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
}

type storeTx interface {
	Users() userStore
	Pending() pendingStore
}

type userStore interface {
	Create(ctx context.Context, usr *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error)
}

type pendingStore interface {
	Upsert(ctx context.Context, rec *domain.PendingRegistration, ttl time.Duration) error
	Get(ctx context.Context, email string) (*domain.PendingRegistration, error)
	Consume(ctx context.Context, email string, purpose domain.PendingPurpose, code string) (bool, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) Users() userStore { return g.store.Users() }

func (g gormStoreAdapter) Pending() pendingStore { return g.store.Pending() }

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormStoreAdapter{store: tx})
	})
}

func (a *AuthServiceImpl) clock() time.Time {
	if a.now != nil {
		return a.now().UTC()
	}
	return time.Now().UTC()
}

func (a *AuthServiceImpl) record(ctx context.Context, event any) {
	if a.Events != nil {
		a.Events.Record(ctx, event)
	}
}

func (a *AuthServiceImpl) Signup(ctx context.Context, r dto.SignupRequest, avatar *dto.Upload) (_ *dto.AckResponse, err error) {
	defer func() { metrics.SignupsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	if err := validateSignup(r); err != nil {
		return nil, err
	}
	if err := validateImage(avatar); err != nil {
		return nil, err
	}

	switch _, err := a.Store.Users().GetByEmail(ctx, r.Email); {
	case err == nil:
		return nil, domain.ErrAlreadyExists
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, fmt.Errorf("signup: lookup user: %w", err)
	}

	hash, err := a.PasswordService.Hash(r.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: hash password: %w", err)
	}

	var avatarURL string
	if avatar != nil {
		if avatarURL, err = uploadImage(ctx, a.Images, avatar, domain.SignupAvatarUpload); err != nil {
			return nil, err
		}
	}

	rec := &domain.PendingRegistration{
		Email:        r.Email,
		Purpose:      domain.PurposeSignup,
		FullName:     r.FullName,
		PasswordHash: hash,
		Avatar:       avatarURL,
	}
	if err := a.stage(ctx, rec); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if err := a.Email.SendSignupOTP(ctx, rec.Email, rec.OTP); err != nil {
		slog.Warn("signup otp dispatch failed", append([]any{"email", rec.Email, "error", err}, middleware.LogAttrs(ctx)...)...)
		return nil, fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}

	slog.Info("signup staged", append([]any{"email", rec.Email, "expires_at", rec.ExpiresAt}, middleware.LogAttrs(ctx)...)...)
	return &dto.AckResponse{Message: "OTP sent to your email. Please verify to complete signup."}, nil
}

// stage assigns a fresh code to rec and stores it as the only pending record
// for its email.
func (a *AuthServiceImpl) stage(ctx context.Context, rec *domain.PendingRegistration) error {
	code, err := a.OTP.Generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	rec.OTP = code
	if err := a.Store.Pending().Upsert(ctx, rec, a.OTPTTL); err != nil {
		return fmt.Errorf("stage pending record: %w", err)
	}
	a.record(ctx, events.OTPIssued{Email: rec.Email, Purpose: string(rec.Purpose), Expires: rec.ExpiresAt, At: a.clock()})
	return nil
}

// livePending returns the unexpired record of the given purpose whose code
// equals otp.
func (a *AuthServiceImpl) livePending(ctx context.Context, email, otp string, purpose domain.PendingPurpose) (*domain.PendingRegistration, error) {
	rec, err := a.Store.Pending().Get(ctx, email)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrOTPNotFoundOrExpired
	case err != nil:
		return nil, fmt.Errorf("load pending record: %w", err)
	}
	if rec.Purpose != purpose || rec.Expired(a.clock()) {
		return nil, domain.ErrOTPNotFoundOrExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.OTP), []byte(otp)) != 1 {
		return nil, domain.ErrInvalidOTP
	}
	return rec, nil
}

func (a *AuthServiceImpl) VerifyOTP(ctx context.Context, r dto.VerifyOTPRequest) (_ *dto.SessionResponse, err error) {
	defer func() { metrics.OTPVerificationsTotal.WithLabelValues("signup", metrics.Result(err)).Inc() }()

	r.Email = strings.TrimSpace(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	if r.Email == "" || r.OTP == "" {
		return nil, domain.Invalid("Please provide email and OTP")
	}

	rec, err := a.livePending(ctx, r.Email, r.OTP, domain.PurposeSignup)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		ok, err := tx.Pending().Consume(ctx, rec.Email, domain.PurposeSignup, rec.OTP)
		if err != nil {
			return fmt.Errorf("consume pending record: %w", err)
		}
		if !ok {
			return domain.ErrOTPNotFoundOrExpired
		}
		u := &domain.User{
			Email:        rec.Email,
			FullName:     rec.FullName,
			PasswordHash: rec.PasswordHash,
			Avatar:       rec.Avatar,
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.record(ctx, events.UserRegistered{UserID: user.ID.String(), Email: user.Email, At: a.clock()})

	tokens, err := a.TService.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("verify otp: issue token: %w", err)
	}
	slog.Info("user registered", append([]any{"user_id", user.ID.String()}, middleware.LogAttrs(ctx)...)...)
	return &dto.SessionResponse{
		Message: "User registered successfully",
		Token:   *tokens,
		User:    dto.NewPublicUser(user),
	}, nil
}

func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (_ *dto.SessionResponse, err error) {
	defer func() { metrics.LoginsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return nil, domain.Invalid("Please provide email and password")
	}

	user, err := a.Store.Users().GetByEmail(ctx, r.Email)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		// Burn the same hashing work as a real attempt.
		a.PasswordService.Verify(r.Password, a.decoyHash())
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("login: lookup user: %w", err)
	}

	rehashNeeded, ok := a.PasswordService.Verify(r.Password, user.PasswordHash)
	if !ok {
		slog.Info("login rejected", append([]any{"ip", ip}, middleware.LogAttrs(ctx)...)...)
		return nil, domain.ErrInvalidCredentials
	}

	if rehashNeeded {
		if hash, herr := a.PasswordService.Hash(r.Password); herr == nil {
			if updated, uerr := a.Store.Users().Update(ctx, user.ID, domain.UserPatch{PasswordHash: &hash}); uerr == nil {
				user = updated
			} else {
				slog.Warn("password rehash not persisted", append([]any{"user_id", user.ID.String(), "error", uerr}, middleware.LogAttrs(ctx)...)...)
			}
		}
	}

	tokens, err := a.TService.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}
	slog.Info("login succeeded", append([]any{"user_id", user.ID.String(), "ip", ip, "user_agent", ua}, middleware.LogAttrs(ctx)...)...)
	return &dto.SessionResponse{
		Message: "Logged in successfully",
		Token:   *tokens,
		User:    dto.NewPublicUser(user),
	}, nil
}

func (a *AuthServiceImpl) decoyHash() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = a.PasswordService.Hash(uuid.NewString())
	})
	return a.dummyHash
}

// Logout never fails. Tokens are stateless so there is nothing to revoke;
// the caller clears the carrier.
func (a *AuthServiceImpl) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if id, err := a.TService.Verify(ctx, token); err == nil {
		slog.Info("user logged out", append([]any{"user_id", id.String()}, middleware.LogAttrs(ctx)...)...)
	}
	return nil
}

func (a *AuthServiceImpl) ForgotPassword(ctx context.Context, r dto.ForgotPasswordRequest) (_ *dto.AckResponse, err error) {
	defer func() { metrics.PasswordResetsTotal.WithLabelValues("request", metrics.Result(err)).Inc() }()

	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return nil, domain.Invalid("Please provide an email")
	}
	if !validEmail(r.Email) {
		return nil, domain.Invalid("Invalid email format")
	}

	switch _, err := a.Store.Users().GetByEmail(ctx, r.Email); {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("forgot password: lookup user: %w", err)
	}

	rec := &domain.PendingRegistration{Email: r.Email, Purpose: domain.PurposeReset}
	if err := a.stage(ctx, rec); err != nil {
		return nil, fmt.Errorf("forgot password: %w", err)
	}
	if err := a.Email.SendPasswordResetOTP(ctx, rec.Email, rec.OTP); err != nil {
		slog.Warn("reset otp dispatch failed", append([]any{"email", rec.Email, "error", err}, middleware.LogAttrs(ctx)...)...)
		return nil, fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}
	return &dto.AckResponse{Message: "OTP sent to your email. Please verify to reset password."}, nil
}

func (a *AuthServiceImpl) ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) (_ *dto.AckResponse, err error) {
	defer func() { metrics.PasswordResetsTotal.WithLabelValues("confirm", metrics.Result(err)).Inc() }()

	r.Email = strings.TrimSpace(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	if r.Email == "" || r.OTP == "" || r.NewPassword == "" {
		return nil, domain.Invalid("Please provide email, OTP, and new password")
	}
	if !validEmail(r.Email) {
		return nil, domain.Invalid("Invalid email format")
	}
	if runeLen(r.NewPassword) < minPasswordLen {
		return nil, domain.Invalid("New password must be at least 6 characters")
	}

	rec, err := a.livePending(ctx, r.Email, r.OTP, domain.PurposeReset)
	if err != nil {
		return nil, err
	}

	user, err := a.Store.Users().GetByEmail(ctx, r.Email)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("reset password: lookup user: %w", err)
	}

	hash, err := a.PasswordService.Hash(r.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("reset password: hash password: %w", err)
	}

	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		ok, err := tx.Pending().Consume(ctx, rec.Email, domain.PurposeReset, rec.OTP)
		if err != nil {
			return fmt.Errorf("consume pending record: %w", err)
		}
		if !ok {
			return domain.ErrOTPNotFoundOrExpired
		}
		if _, err := tx.Users().Update(ctx, user.ID, domain.UserPatch{PasswordHash: &hash}); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.record(ctx, events.PasswordReset{UserID: user.ID.String(), At: a.clock()})
	slog.Info("password reset", append([]any{"user_id", user.ID.String()}, middleware.LogAttrs(ctx)...)...)
	return &dto.AckResponse{Message: "Password reset successfully. Please log in with your new password."}, nil
}

func (a *AuthServiceImpl) UpdateProfile(ctx context.Context, userID domain.UserID, avatar *dto.Upload) (*dto.PublicUser, error) {
	user, err := a.Store.Users().GetByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrUnauthenticated
	case err != nil:
		return nil, fmt.Errorf("update profile: load user: %w", err)
	}
	if avatar == nil {
		out := dto.NewPublicUser(user)
		return &out, nil
	}
	if err := validateImage(avatar); err != nil {
		return nil, err
	}

	url, err := uploadImage(ctx, a.Images, avatar, domain.ProfileAvatarUpload)
	if err != nil {
		return nil, err
	}
	updated, err := a.Store.Users().Update(ctx, user.ID, domain.UserPatch{Avatar: &url})
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrUnauthenticated
	case err != nil:
		return nil, fmt.Errorf("update profile: %w", err)
	}

	a.record(ctx, events.ProfileUpdated{UserID: updated.ID.String(), Avatar: updated.Avatar, At: a.clock()})
	out := dto.NewPublicUser(updated)
	return &out, nil
}

func (a *AuthServiceImpl) CheckAuth(ctx context.Context, token string) (*dto.PublicUser, error) {
	id, err := a.TService.Verify(ctx, token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := a.Store.Users().GetByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrUnauthenticated
	case err != nil:
		return nil, fmt.Errorf("check auth: load user: %w", err)
	}
	out := dto.NewPublicUser(user)
	return &out, nil
}
