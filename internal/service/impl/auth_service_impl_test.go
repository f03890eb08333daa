package impl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/store"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubPasswordService struct {
	mu        sync.Mutex
	rehash    bool
	hashCalls []string
}

func (s *stubPasswordService) Hash(password string) (string, error) {
	s.mu.Lock()
	s.hashCalls = append(s.hashCalls, password)
	s.mu.Unlock()
	return "hash:" + password, nil
}

func (s *stubPasswordService) Verify(password, digest string) (bool, bool) {
	if digest != "hash:"+password {
		return false, false
	}
	return s.rehash, true
}

type sequenceOTP struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequenceOTP) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "123456", nil
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

type stubTokenService struct {
	mu     sync.Mutex
	issued []uuid.UUID
}

func (s *stubTokenService) Issue(ctx context.Context, user *domain.User) (*dto.TokenResponse, error) {
	s.mu.Lock()
	s.issued = append(s.issued, user.ID)
	s.mu.Unlock()
	return &dto.TokenResponse{AccessToken: "tok-" + user.ID.String(), ExpiresIn: 3600}, nil
}

func (s *stubTokenService) Verify(ctx context.Context, token string) (domain.UserID, error) {
	id, err := uuid.Parse(strings.TrimPrefix(token, "tok-"))
	if err != nil || !strings.HasPrefix(token, "tok-") {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	return id, nil
}

type sentOTP struct {
	kind string
	to   string
	otp  string
}

type recordingEmail struct {
	mu   sync.Mutex
	err  error
	sent []sentOTP
}

func (r *recordingEmail) SendSignupOTP(ctx context.Context, to, otp string) error {
	return r.add("signup", to, otp)
}

func (r *recordingEmail) SendPasswordResetOTP(ctx context.Context, to, otp string) error {
	return r.add("reset", to, otp)
}

func (r *recordingEmail) add(kind, to, otp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentOTP{kind: kind, to: to, otp: otp})
	return nil
}

func (r *recordingEmail) last(t *testing.T) sentOTP {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatalf("no email was sent")
	}
	return r.sent[len(r.sent)-1]
}

type stubImages struct {
	err  error
	opts []domain.UploadOptions
}

func (s *stubImages) Upload(ctx context.Context, data []byte, opts domain.UploadOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.opts = append(s.opts, opts)
	return "https://img.test/" + opts.Folder + "/pic.png", nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingEvents) Record(ctx context.Context, event any) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// memoryStore mirrors the gorm store closely enough for the lifecycle flows:
// unique emails, expiry-aware reads and conditional consumption.
type memoryStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	users   map[uuid.UUID]*domain.User
	emails  map[string]uuid.UUID
	pending map[string]*domain.PendingRegistration
}

type storeSnapshot struct {
	users   map[uuid.UUID]*domain.User
	emails  map[string]uuid.UUID
	pending map[string]*domain.PendingRegistration
}

func newMemoryStore(clock *fakeClock) *memoryStore {
	return &memoryStore{
		clock:   clock,
		users:   make(map[uuid.UUID]*domain.User),
		emails:  make(map[string]uuid.UUID),
		pending: make(map[string]*domain.PendingRegistration),
	}
}

func (m *memoryStore) Users() userStore { return &memoryUserStore{store: m} }

func (m *memoryStore) Pending() pendingStore { return &memoryPendingStore{store: m} }

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryTx{store: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memoryStore) snapshot() storeSnapshot {
	users := make(map[uuid.UUID]*domain.User, len(m.users))
	for id, u := range m.users {
		copy := *u
		users[id] = &copy
	}
	emails := make(map[string]uuid.UUID, len(m.emails))
	for k, v := range m.emails {
		emails[k] = v
	}
	pending := make(map[string]*domain.PendingRegistration, len(m.pending))
	for k, p := range m.pending {
		copy := *p
		pending[k] = &copy
	}
	return storeSnapshot{users: users, emails: emails, pending: pending}
}

func (m *memoryStore) restore(s storeSnapshot) {
	m.users = s.users
	m.emails = s.emails
	m.pending = s.pending
}

func (m *memoryStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memoryStore) userByEmail(email string) (*domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.emails[email]
	if !ok {
		return nil, false
	}
	copy := *m.users[id]
	return &copy, true
}

func (m *memoryStore) pendingFor(email string) (*domain.PendingRegistration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[email]
	if !ok {
		return nil, false
	}
	copy := *p
	return &copy, true
}

func (m *memoryStore) removeUser(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.emails, u.Email)
		delete(m.users, id)
	}
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) Users() userStore { return &memoryUserStore{store: t.store, inTx: true} }

func (t *memoryTx) Pending() pendingStore { return &memoryPendingStore{store: t.store, inTx: true} }

// guard takes the store lock unless the caller already holds it through
// WithTx.
func guard(m *memoryStore, inTx bool) func() {
	if inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memoryUserStore struct {
	store *memoryStore
	inTx  bool
}

func (u *memoryUserStore) Create(ctx context.Context, usr *domain.User) error {
	defer guard(u.store, u.inTx)()
	if _, taken := u.store.emails[usr.Email]; taken {
		return store.ErrDuplicateEmail
	}
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	now := u.store.clock.Now()
	usr.CreatedAt, usr.UpdatedAt = now, now
	if usr.Avatar == "" {
		usr.Avatar = domain.DefaultAvatarURL
	}
	copy := *usr
	u.store.users[usr.ID] = &copy
	u.store.emails[usr.Email] = usr.ID
	return nil
}

func (u *memoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	defer guard(u.store, u.inTx)()
	usr, ok := u.store.users[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	copy := *usr
	return &copy, nil
}

func (u *memoryUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer guard(u.store, u.inTx)()
	id, ok := u.store.emails[email]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	copy := *u.store.users[id]
	return &copy, nil
}

func (u *memoryUserStore) Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	defer guard(u.store, u.inTx)()
	usr, ok := u.store.users[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	if patch.PasswordHash != nil {
		usr.PasswordHash = *patch.PasswordHash
	}
	if patch.Avatar != nil {
		usr.Avatar = *patch.Avatar
	}
	usr.UpdatedAt = u.store.clock.Now()
	copy := *usr
	return &copy, nil
}

type memoryPendingStore struct {
	store *memoryStore
	inTx  bool
}

func (p *memoryPendingStore) Upsert(ctx context.Context, rec *domain.PendingRegistration, ttl time.Duration) error {
	defer guard(p.store, p.inTx)()
	now := p.store.clock.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.ExpiresAt = now.Add(ttl)
	copy := *rec
	p.store.pending[rec.Email] = &copy
	return nil
}

func (p *memoryPendingStore) Get(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	defer guard(p.store, p.inTx)()
	rec, ok := p.store.pending[email]
	if !ok || rec.Expired(p.store.clock.Now()) {
		return nil, store.ErrRecordNotFound
	}
	copy := *rec
	return &copy, nil
}

func (p *memoryPendingStore) Consume(ctx context.Context, email string, purpose domain.PendingPurpose, code string) (bool, error) {
	defer guard(p.store, p.inTx)()
	rec, ok := p.store.pending[email]
	if !ok || rec.Purpose != purpose || rec.OTP != code || rec.Expired(p.store.clock.Now()) {
		return false, nil
	}
	delete(p.store.pending, email)
	return true, nil
}

type authFixture struct {
	svc    *AuthServiceImpl
	store  *memoryStore
	clock  *fakeClock
	pw     *stubPasswordService
	otp    *sequenceOTP
	tokens *stubTokenService
	mail   *recordingEmail
	images *stubImages
	events *recordingEvents
}

func newAuthFixture(codes ...string) *authFixture {
	clock := newFakeClock()
	f := &authFixture{
		store:  newMemoryStore(clock),
		clock:  clock,
		pw:     &stubPasswordService{},
		otp:    &sequenceOTP{codes: codes},
		tokens: &stubTokenService{},
		mail:   &recordingEmail{},
		images: &stubImages{},
		events: &recordingEvents{},
	}
	f.svc = &AuthServiceImpl{
		Store:           f.store,
		PasswordService: f.pw,
		TService:        f.tokens,
		OTP:             f.otp,
		Email:           f.mail,
		Images:          f.images,
		Events:          f.events,
		OTPTTL:          DefaultOTPTTL,
		now:             clock.Now,
	}
	return f
}

// register runs signup and verification for a fresh account.
func (f *authFixture) register(t *testing.T, fullName, email, password string) *domain.User {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Signup(ctx, dto.SignupRequest{FullName: fullName, Email: email, Password: password}, nil); err != nil {
		t.Fatalf("signup: %v", err)
	}
	code := f.mail.last(t).otp
	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: email, OTP: code}); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	u, ok := f.store.userByEmail(email)
	if !ok {
		t.Fatalf("user %s not persisted", email)
	}
	return u
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestSignupThenVerifyCreatesUser(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()

	ack, err := f.svc.Signup(ctx, dto.SignupRequest{FullName: "  Sophie Martin ", Email: "sophie@example.com", Password: "secret1"}, nil)
	if err != nil {
		t.Fatalf("signup returned error: %v", err)
	}
	if ack == nil || ack.Message == "" {
		t.Fatalf("expected acknowledgement, got %+v", ack)
	}
	if f.store.userCount() != 0 {
		t.Fatalf("signup must not create a user before verification")
	}
	sent := f.mail.last(t)
	if sent.kind != "signup" || sent.to != "sophie@example.com" || sent.otp != "482913" {
		t.Fatalf("unexpected dispatch: %+v", sent)
	}
	rec, ok := f.store.pendingFor("sophie@example.com")
	if !ok {
		t.Fatalf("pending record not staged")
	}
	if rec.FullName != "Sophie Martin" || rec.PasswordHash != "hash:secret1" {
		t.Fatalf("unexpected pending record: %+v", rec)
	}
	if !rec.ExpiresAt.Equal(f.clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("pending record expires at %v", rec.ExpiresAt)
	}

	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: "sophie@example.com", OTP: "000000"}); !errors.Is(err, domain.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if _, ok := f.store.pendingFor("sophie@example.com"); !ok {
		t.Fatalf("a wrong code must not discard the pending record")
	}

	resp, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: "sophie@example.com", OTP: "482913"})
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if resp.User.Email != "sophie@example.com" || resp.User.FullName != "Sophie Martin" {
		t.Fatalf("unexpected user in response: %+v", resp.User)
	}
	if resp.User.Avatar != domain.DefaultAvatarURL {
		t.Fatalf("expected default avatar, got %q", resp.User.Avatar)
	}
	if resp.Token.AccessToken != "tok-"+resp.User.ID {
		t.Fatalf("unexpected token: %+v", resp.Token)
	}
	if _, ok := f.store.pendingFor("sophie@example.com"); ok {
		t.Fatalf("pending record must be consumed")
	}

	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: "sophie@example.com", OTP: "482913"}); !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("expected replay to fail with ErrOTPNotFoundOrExpired, got %v", err)
	}
	if f.store.userCount() != 1 {
		t.Fatalf("expected exactly one user, got %d", f.store.userCount())
	}
}

func TestSignupValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.SignupRequest
	}{
		{name: "missing name", req: dto.SignupRequest{Email: "a@b.co", Password: "secret1"}},
		{name: "missing email", req: dto.SignupRequest{FullName: "Alice", Password: "secret1"}},
		{name: "missing password", req: dto.SignupRequest{FullName: "Alice", Email: "a@b.co"}},
		{name: "bad email", req: dto.SignupRequest{FullName: "Alice", Email: "alice.example.com", Password: "secret1"}},
		{name: "email with space", req: dto.SignupRequest{FullName: "Alice", Email: "al ice@example.com", Password: "secret1"}},
		{name: "short password", req: dto.SignupRequest{FullName: "Alice", Email: "a@b.co", Password: "12345"}},
		{name: "short name after trim", req: dto.SignupRequest{FullName: "  Al  ", Email: "a@b.co", Password: "secret1"}},
		{name: "blank name", req: dto.SignupRequest{FullName: "   ", Email: "a@b.co", Password: "secret1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Signup(ctx, tc.req, nil); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("invalid signups must not dispatch codes")
	}
}

func TestSignupRejectsNonImageAvatar(t *testing.T) {
	f := newAuthFixture()
	req := dto.SignupRequest{FullName: "Alice", Email: "a@b.co", Password: "secret1"}
	_, err := f.svc.Signup(context.Background(), req, &dto.Upload{Filename: "a.txt", Data: []byte("plain text")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.images.opts) != 0 {
		t.Fatalf("non-image uploads must not reach the image store")
	}
}

func TestSignupRejectsExistingEmail(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "Alice Smith", "alice@example.com", "secret1")

	_, err := f.svc.Signup(context.Background(), dto.SignupRequest{FullName: "Other Alice", Email: "alice@example.com", Password: "secret2"}, nil)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSignupResendInvalidatesEarlierCode(t *testing.T) {
	f := newAuthFixture("111111", "222222")
	ctx := context.Background()
	req := dto.SignupRequest{FullName: "Bob Stone", Email: "bob@example.com", Password: "secret1"}

	if _, err := f.svc.Signup(ctx, req, nil); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	req.FullName = "Robert Stone"
	if _, err := f.svc.Signup(ctx, req, nil); err != nil {
		t.Fatalf("second signup: %v", err)
	}

	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "111111"}); !errors.Is(err, domain.ErrInvalidOTP) {
		t.Fatalf("expected earlier code to be rejected, got %v", err)
	}
	resp, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "222222"})
	if err != nil {
		t.Fatalf("verify latest code: %v", err)
	}
	if resp.User.FullName != "Robert Stone" {
		t.Fatalf("expected data of the latest signup, got %q", resp.User.FullName)
	}
}

func TestVerifyOTPAfterExpiry(t *testing.T) {
	f := newAuthFixture("333333")
	ctx := context.Background()
	if _, err := f.svc.Signup(ctx, dto.SignupRequest{FullName: "Carol", Email: "carol@example.com", Password: "secret1"}, nil); err != nil {
		t.Fatalf("signup: %v", err)
	}

	f.clock.Advance(5 * time.Minute)

	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: "carol@example.com", OTP: "333333"}); !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("expected ErrOTPNotFoundOrExpired at the expiry instant, got %v", err)
	}
	if f.store.userCount() != 0 {
		t.Fatalf("expired codes must not create users")
	}
}

func TestVerifyOTPValidation(t *testing.T) {
	f := newAuthFixture()
	for _, req := range []dto.VerifyOTPRequest{{Email: "a@b.co"}, {OTP: "123456"}, {}} {
		if _, err := f.svc.VerifyOTP(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestVerifyOTPUnknownEmail(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.VerifyOTP(context.Background(), dto.VerifyOTPRequest{Email: "ghost@example.com", OTP: "123456"})
	if !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("expected ErrOTPNotFoundOrExpired, got %v", err)
	}
}

func TestSignupDispatchFailureKeepsStagedRecord(t *testing.T) {
	f := newAuthFixture("444444", "555555")
	f.mail.err = errors.New("smtp down")
	ctx := context.Background()
	req := dto.SignupRequest{FullName: "Dave", Email: "dave@example.com", Password: "secret1"}

	if _, err := f.svc.Signup(ctx, req, nil); !errors.Is(err, domain.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if _, ok := f.store.pendingFor(req.Email); !ok {
		t.Fatalf("staged record should survive a failed dispatch")
	}

	f.mail.err = nil
	if _, err := f.svc.Signup(ctx, req, nil); err != nil {
		t.Fatalf("retry signup: %v", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "555555"}); err != nil {
		t.Fatalf("verify after retry: %v", err)
	}
}

func TestSignupAvatarUploadedWithSignupPreset(t *testing.T) {
	f := newAuthFixture("666666")
	ctx := context.Background()
	req := dto.SignupRequest{FullName: "Erin", Email: "erin@example.com", Password: "secret1"}

	if _, err := f.svc.Signup(ctx, req, &dto.Upload{Filename: "me.png", Data: pngBytes}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if len(f.images.opts) != 1 {
		t.Fatalf("expected one upload, got %d", len(f.images.opts))
	}
	opts := f.images.opts[0]
	if opts.Folder != "anichat/avatars" || opts.Width != 200 || opts.Height != 200 || opts.Crop != "fill" || opts.ContentType != "image/png" {
		t.Fatalf("unexpected upload options: %+v", opts)
	}

	resp, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "666666"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if resp.User.Avatar != "https://img.test/anichat/avatars/pic.png" {
		t.Fatalf("avatar not carried to the user: %q", resp.User.Avatar)
	}
}

func TestSignupUploadFailureAborts(t *testing.T) {
	f := newAuthFixture()
	f.images.err = errors.New("bucket unavailable")
	req := dto.SignupRequest{FullName: "Frank", Email: "frank@example.com", Password: "secret1"}

	if _, err := f.svc.Signup(context.Background(), req, &dto.Upload{Data: pngBytes}); !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if _, ok := f.store.pendingFor(req.Email); ok {
		t.Fatalf("no record may be staged when the upload fails")
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("no code may be sent when the upload fails")
	}
}

func TestVerifyOTPRejectsResetRecord(t *testing.T) {
	f := newAuthFixture("777777", "888888")
	f.register(t, "Grace Hopper", "grace@example.com", "secret1")
	ctx := context.Background()

	if _, err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordRequest{Email: "grace@example.com"}); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	code := f.mail.last(t).otp
	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: "grace@example.com", OTP: code}); !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("expected ErrOTPNotFoundOrExpired, got %v", err)
	}
	if _, ok := f.store.pendingFor("grace@example.com"); !ok {
		t.Fatalf("reset record must remain usable")
	}
}

func TestVerifyOTPDuplicateUserRollsBack(t *testing.T) {
	f := newAuthFixture("999999")
	ctx := context.Background()
	req := dto.SignupRequest{FullName: "Heidi", Email: "heidi@example.com", Password: "secret1"}
	if _, err := f.svc.Signup(ctx, req, nil); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.store.Users().Create(ctx, &domain.User{Email: req.Email, FullName: "Heidi Elsewhere"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "999999"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if f.store.userCount() != 1 {
		t.Fatalf("expected the existing user only, got %d", f.store.userCount())
	}
	if _, ok := f.store.pendingFor(req.Email); !ok {
		t.Fatalf("consumption must roll back with the failed create")
	}
}

func TestConcurrentVerifyCreatesOneUser(t *testing.T) {
	f := newAuthFixture("121212")
	ctx := context.Background()
	req := dto.SignupRequest{FullName: "Ivan", Email: "ivan@example.com", Password: "secret1"}
	if _, err := f.svc.Signup(ctx, req, nil); err != nil {
		t.Fatalf("signup: %v", err)
	}

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.VerifyOTP(ctx, dto.VerifyOTPRequest{Email: req.Email, OTP: "121212"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			others = append(others, err)
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
	for _, err := range others {
		if !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
			t.Fatalf("losers should see ErrOTPNotFoundOrExpired, got %v", err)
		}
	}
	if f.store.userCount() != 1 {
		t.Fatalf("expected one user, got %d", f.store.userCount())
	}
}

func TestLoginSucceedsWithCorrectPassword(t *testing.T) {
	f := newAuthFixture()
	u := f.register(t, "Judy Doe", "judy@example.com", "secret1")

	resp, err := f.svc.Login(context.Background(), dto.LoginRequest{Email: "judy@example.com", Password: "secret1"}, "10.0.0.1", "unit-test")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.ID != u.ID.String() || resp.Token.AccessToken != "tok-"+u.ID.String() {
		t.Fatalf("unexpected session: %+v", resp)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "Mallory", "mallory@example.com", "secret1")
	ctx := context.Background()

	_, unknown := f.svc.Login(ctx, dto.LoginRequest{Email: "nobody@example.com", Password: "secret1"}, "", "")
	_, wrong := f.svc.Login(ctx, dto.LoginRequest{Email: "mallory@example.com", Password: "wrong-password"}, "", "")
	if unknown != domain.ErrInvalidCredentials || wrong != domain.ErrInvalidCredentials {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v and %v", unknown, wrong)
	}
}

func TestLoginValidation(t *testing.T) {
	f := newAuthFixture()
	for _, req := range []dto.LoginRequest{{Email: "a@b.co"}, {Password: "secret1"}} {
		if _, err := f.svc.Login(context.Background(), req, "", ""); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestLoginRehashesWhenNeeded(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "Niaj", "niaj@example.com", "secret1")
	f.pw.rehash = true
	before := len(f.pw.hashCalls)

	if _, err := f.svc.Login(context.Background(), dto.LoginRequest{Email: "niaj@example.com", Password: "secret1"}, "", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(f.pw.hashCalls) != before+1 || f.pw.hashCalls[len(f.pw.hashCalls)-1] != "secret1" {
		t.Fatalf("expected one rehash of the supplied password, got %v", f.pw.hashCalls[before:])
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordRequest{Email: "ghost@example.com"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("no code may be sent for unknown accounts")
	}
}

func TestForgotPasswordValidation(t *testing.T) {
	f := newAuthFixture()
	for _, email := range []string{"", "not-an-email"} {
		if _, err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordRequest{Email: email}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", email, err)
		}
	}
}

func TestResetPasswordThenLogin(t *testing.T) {
	f := newAuthFixture("100001", "200002")
	f.register(t, "Olivia", "olivia@example.com", "old-secret")
	ctx := context.Background()

	ack, err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordRequest{Email: "olivia@example.com"})
	if err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if ack.Message == "" {
		t.Fatalf("expected an acknowledgement")
	}
	sent := f.mail.last(t)
	if sent.kind != "reset" || sent.otp != "200002" {
		t.Fatalf("unexpected dispatch: %+v", sent)
	}
	issuedBefore := len(f.tokens.issued)

	if _, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Email: "olivia@example.com", OTP: "999999", NewPassword: "new-secret"}); !errors.Is(err, domain.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if _, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Email: "olivia@example.com", OTP: "200002", NewPassword: "new-secret"}); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if len(f.tokens.issued) != issuedBefore {
		t.Fatalf("password reset must not issue a session")
	}

	if _, err := f.svc.Login(ctx, dto.LoginRequest{Email: "olivia@example.com", Password: "old-secret"}, "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, err := f.svc.Login(ctx, dto.LoginRequest{Email: "olivia@example.com", Password: "new-secret"}, "", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Email: "olivia@example.com", OTP: "200002", NewPassword: "third-secret"}); !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("reset code must be single use, got %v", err)
	}
}

func TestResetPasswordRejectsSignupRecord(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "Peggy", "peggy@example.com", "secret1")
	ctx := context.Background()
	if err := f.store.Pending().Upsert(ctx, &domain.PendingRegistration{Email: "peggy@example.com", Purpose: domain.PurposeSignup, OTP: "424242"}, time.Minute); err != nil {
		t.Fatalf("seed pending record: %v", err)
	}

	_, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Email: "peggy@example.com", OTP: "424242", NewPassword: "new-secret"})
	if !errors.Is(err, domain.ErrOTPNotFoundOrExpired) {
		t.Fatalf("expected ErrOTPNotFoundOrExpired, got %v", err)
	}
}

func TestResetPasswordValidation(t *testing.T) {
	f := newAuthFixture()
	cases := []dto.ResetPasswordRequest{
		{OTP: "123456", NewPassword: "secret1"},
		{Email: "a@b.co", NewPassword: "secret1"},
		{Email: "a@b.co", OTP: "123456"},
		{Email: "bad", OTP: "123456", NewPassword: "secret1"},
		{Email: "a@b.co", OTP: "123456", NewPassword: "12345"},
	}
	for _, req := range cases {
		if _, err := f.svc.ResetPassword(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	f := newAuthFixture()
	u := f.register(t, "Rupert", "rupert@example.com", "secret1")
	ctx := context.Background()

	for _, token := range []string{"tok-" + u.ID.String(), "tok-" + u.ID.String(), "", "garbage"} {
		if err := f.svc.Logout(ctx, token); err != nil {
			t.Fatalf("logout(%q) returned %v", token, err)
		}
	}
}

func TestCheckAuth(t *testing.T) {
	f := newAuthFixture()
	u := f.register(t, "Sybil", "sybil@example.com", "secret1")
	ctx := context.Background()

	got, err := f.svc.CheckAuth(ctx, "tok-"+u.ID.String())
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if got.ID != u.ID.String() || got.Email != u.Email {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := f.svc.CheckAuth(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a bad token, got %v", err)
	}

	f.store.removeUser(u.ID)
	if _, err := f.svc.CheckAuth(ctx, "tok-"+u.ID.String()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a vanished user, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture()
	u := f.register(t, "Trent", "trent@example.com", "secret1")
	ctx := context.Background()

	same, err := f.svc.UpdateProfile(ctx, u.ID, nil)
	if err != nil {
		t.Fatalf("update without avatar: %v", err)
	}
	if same.Avatar != domain.DefaultAvatarURL {
		t.Fatalf("profile should be unchanged, got %q", same.Avatar)
	}

	updated, err := f.svc.UpdateProfile(ctx, u.ID, &dto.Upload{Filename: "new.png", Data: pngBytes})
	if err != nil {
		t.Fatalf("update with avatar: %v", err)
	}
	if updated.Avatar != "https://img.test/avatars/pic.png" {
		t.Fatalf("unexpected avatar: %q", updated.Avatar)
	}
	opts := f.images.opts[len(f.images.opts)-1]
	if opts.Folder != "avatars" || opts.Width != 150 || opts.Height != 150 || opts.Crop != "fill" {
		t.Fatalf("unexpected upload options: %+v", opts)
	}
	stored, _ := f.store.userByEmail("trent@example.com")
	if stored.Avatar != updated.Avatar {
		t.Fatalf("avatar not persisted: %q", stored.Avatar)
	}
}

func TestUpdateProfileUploadFailureLeavesAvatar(t *testing.T) {
	f := newAuthFixture()
	u := f.register(t, "Victor", "victor@example.com", "secret1")
	f.images.err = errors.New("timeout")

	if _, err := f.svc.UpdateProfile(context.Background(), u.ID, &dto.Upload{Data: pngBytes}); !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	stored, _ := f.store.userByEmail("victor@example.com")
	if stored.Avatar != domain.DefaultAvatarURL {
		t.Fatalf("avatar changed despite failed upload: %q", stored.Avatar)
	}
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.svc.UpdateProfile(context.Background(), uuid.New(), nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
