package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/cryptox"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	usersrepo "github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const secret = "test-secret"

// --- helpers ---

type fixture struct {
	svc    *UserService
	repo   *usersrepo.MemoryRepository
	hasher *cryptox.PasswordHasher
	codec  *auth.Codec
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    secret,
		AccessTokenValidityDuration:  10 * time.Minute,
		RefreshTokenValidityDuration: 24 * time.Hour,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   usersrepo.NewMemoryRepository(),
		hasher: cryptox.NewPasswordHasher(bcrypt.MinCost),
		codec:  auth.NewCodec(secret),
	}
	f.svc = NewUserService(f.repo, f.hasher, f.codec, testConfig(), logging.NewNopLogger(), nil)
	return f
}

// seed stores a user directly, bypassing validation.
func (f *fixture) seed(t *testing.T, email, password, nickname string, approved bool) {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	_, err = f.repo.Create(context.Background(), &models.User{
		Email: email, PasswordHash: hash, Nickname: nickname, Role: "user", Approved: approved,
	})
	require.NoError(t, err)
}

func assertCoded(t *testing.T, err error, code, detail string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, common.CodeOf(err), "code")
	assert.Equal(t, detail, common.DetailOf(err), "detail")
}

type fakeRepo struct {
	getOut    *models.User
	getErr    error
	createErr error
}

func (f *fakeRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return u, nil
}

func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeHasher struct {
	hashErr   error
	verifyOK  bool
	verifyErr error
	upgrade   bool
	verifies  int
}

func (f *fakeHasher) Hash(string) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "hashed", nil
}

func (f *fakeHasher) Verify(string, string) (bool, error) {
	f.verifies++
	return f.verifyOK, f.verifyErr
}

func (f *fakeHasher) NeedsUpgrade(string) bool { return f.upgrade }

type fakeCodec struct {
	claims    *auth.Claims
	verifyErr error
	issueErr  error
}

func (f *fakeCodec) Issue(subject, nickname string, ttl time.Duration) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	return subject + "|" + nickname, nil
}

func (f *fakeCodec) Verify(string) (*auth.Claims, error) {
	return f.claims, f.verifyErr
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Register(context.Background(), "alice@example.com", "secret123", "alice")
	require.NoError(t, err)
	assert.Equal(t, &models.UserResponse{Email: "alice@example.com", Nickname: "alice", Role: "user", Approved: false}, resp)

	stored, err := f.repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	ok, err := f.hasher.Verify("secret123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice@example.com", "secret123", "alice")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice@example.com", "another123", "alice2")
	assertCoded(t, err, common.CodeConflict, "Email already registered.")
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		nickname string
		field    string
		detail   string
	}{
		{"bad email", "not-an-email", "secret123", "alice", "email", "value is not a valid email address"},
		{"empty email", "", "secret123", "alice", "email", "value is not a valid email address"},
		{"short password", "a@example.com", "short1", "alice", "password", "Password must be between 8 and 32 characters."},
		{"long password", "a@example.com", strings.Repeat("a", 33), "alice", "password", "Password must be between 8 and 32 characters."},
		{"digits only", "a@example.com", "12345678", "alice", "password", "Password must contain at least one letter."},
		{"short nickname", "a@example.com", "secret123", "abc", "nickname", "Nickname must be between 4 and 32 characters."},
		{"long nickname", "a@example.com", "secret123", strings.Repeat("n", 33), "nickname", "Nickname must be between 4 and 32 characters."},
		{"bad nickname", "a@example.com", "secret123", "bad*nick", "nickname", "Nickname can only contain letters, digits, dash (-), underscore (_) and dot (.) characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Register(context.Background(), tt.email, tt.password, tt.nickname)
			assertCoded(t, err, common.CodeInvalidInput, tt.detail)
			assert.Equal(t, tt.field, common.FieldOf(err))

			_, err = f.repo.GetUserByEmail(context.Background(), tt.email)
			assert.ErrorIs(t, err, common.ErrorNotFound, "nothing stored")
		})
	}
}

func TestRegister_LengthsCountCharacters(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), "u@example.com", "пароль12", "nick")
	assert.NoError(t, err, "8 characters, 14 bytes")

	_, err = f.svc.Register(context.Background(), "v@example.com", strings.Repeat("ж", 32), "nick")
	assert.NoError(t, err, "32 characters, 64 bytes")
}

func TestRegister_NicknameCharset(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), "u@example.com", "secret123", "a.b_c-D9")
	assert.NoError(t, err)
}

func TestRegister_ConflictBeatsPasswordRules(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice@example.com", "secret123", "alice", false)

	_, err := f.svc.Register(context.Background(), "alice@example.com", "x", "a")
	assertCoded(t, err, common.CodeConflict, "Email already registered.")
}

func TestRegister_InfrastructureFailures(t *testing.T) {
	cfg := testConfig()
	log := logging.NewNopLogger()
	dbErr := errors.New("db down")

	t.Run("lookup error", func(t *testing.T) {
		svc := NewUserService(&fakeRepo{getErr: dbErr}, &fakeHasher{}, &fakeCodec{}, cfg, log, nil)
		_, err := svc.Register(context.Background(), "a@example.com", "secret123", "alice")
		assertCoded(t, err, common.CodeInternal, "Internal server error")
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("hash error", func(t *testing.T) {
		svc := NewUserService(&fakeRepo{getErr: common.ErrorNotFound}, &fakeHasher{hashErr: errors.New("rng")}, &fakeCodec{}, cfg, log, nil)
		_, err := svc.Register(context.Background(), "a@example.com", "secret123", "alice")
		assertCoded(t, err, common.CodeInternal, "Error hashing password")
	})

	t.Run("concurrent duplicate", func(t *testing.T) {
		svc := NewUserService(&fakeRepo{getErr: common.ErrorNotFound, createErr: common.ErrorAlreadyExists}, &fakeHasher{}, &fakeCodec{}, cfg, log, nil)
		_, err := svc.Register(context.Background(), "a@example.com", "secret123", "alice")
		assertCoded(t, err, common.CodeConflict, "Email already registered.")
	})

	t.Run("create error", func(t *testing.T) {
		svc := NewUserService(&fakeRepo{getErr: common.ErrorNotFound, createErr: dbErr}, &fakeHasher{}, &fakeCodec{}, cfg, log, nil)
		_, err := svc.Register(context.Background(), "a@example.com", "secret123", "alice")
		assertCoded(t, err, common.CodeInternal, "Internal server error")
	})
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	errs := make([]error, 10)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = f.svc.Register(context.Background(), "race@example.com", "secret123", "racer")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case common.CodeOf(err) == common.CodeConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, conflicts)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice@example.com", "secret123", "alice", true)

	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	for _, tok := range []string{pair.AccessToken, pair.RefreshToken} {
		claims, err := f.codec.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Subject)
		assert.Equal(t, "alice", claims.Nickname)
	}

	access, _ := f.codec.Verify(pair.AccessToken)
	refresh, _ := f.codec.Verify(pair.RefreshToken)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time), "refresh outlives access")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), access.ExpiresAt.Time, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), refresh.ExpiresAt.Time, 5*time.Second)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "approved@example.com", "secret123", "approved", true)
	f.seed(t, "pending@example.com", "secret123", "pending", false)

	tests := []struct {
		name     string
		email    string
		password string
		code     string
		detail   string
	}{
		{"wrong password", "approved@example.com", "wrongpass1", common.CodeUnauthorized, "Invalid credentials"},
		{"unknown user", "ghost@example.com", "secret123", common.CodeUnauthorized, "Invalid credentials"},
		{"not approved", "pending@example.com", "secret123", common.CodeForbidden, "User not approved"},
		{"not approved wrong password", "pending@example.com", "wrongpass1", common.CodeUnauthorized, "Invalid credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			assertCoded(t, err, tt.code, tt.detail)
		})
	}
}

func TestLogin_UnknownUserStillVerifies(t *testing.T) {
	h := &fakeHasher{}
	svc := NewUserService(&fakeRepo{getErr: common.ErrorNotFound}, h, &fakeCodec{}, testConfig(), logging.NewNopLogger(), nil)

	_, err := svc.Login(context.Background(), "ghost@example.com", "secret123")
	assertCoded(t, err, common.CodeUnauthorized, "Invalid credentials")
	assert.Equal(t, 1, h.verifies)
}

func TestLogin_InfrastructureFailures(t *testing.T) {
	cfg := testConfig()
	log := logging.NewNopLogger()
	approved := &models.User{Email: "a@example.com", PasswordHash: "h", Nickname: "alice", Approved: true}

	tests := []struct {
		name   string
		repo   *fakeRepo
		hasher *fakeHasher
		codec  *fakeCodec
	}{
		{"lookup error", &fakeRepo{getErr: errors.New("db down")}, &fakeHasher{}, &fakeCodec{}},
		{"corrupt hash", &fakeRepo{getOut: approved}, &fakeHasher{verifyErr: errors.New("bad hash")}, &fakeCodec{}},
		{"signing error", &fakeRepo{getOut: approved}, &fakeHasher{verifyOK: true}, &fakeCodec{issueErr: errors.New("sign")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewUserService(tt.repo, tt.hasher, tt.codec, cfg, log, nil)
			_, err := svc.Login(context.Background(), "a@example.com", "secret123")
			assertCoded(t, err, common.CodeInternal, "Internal server error")
		})
	}
}

func TestLogin_DeprecatedHashStillWorks(t *testing.T) {
	f := newFixture(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = f.repo.Create(context.Background(), &models.User{
		Email: "old@example.com", PasswordHash: string(legacy), Nickname: "oldie", Role: "user", Approved: true,
	})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "old@example.com", "secret123")
	assert.NoError(t, err)
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice@example.com", "secret123", "alice", true)

	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	access, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := f.codec.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "alice", claims.Nickname)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefresh_Failures(t *testing.T) {
	f := newFixture(t)

	expired, err := f.codec.Issue("alice@example.com", "alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewCodec("other").Issue("alice@example.com", "alice", time.Hour)
	require.NoError(t, err)
	noNick, err := f.codec.Issue("alice@example.com", "", time.Hour)
	require.NoError(t, err)
	noSub, err := f.codec.Issue("", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		code   string
		detail string
	}{
		{"expired", expired, common.CodeTokenExpired, "Refresh token expired"},
		{"garbage", "not-a-token", common.CodeUnauthorized, "Invalid refresh token"},
		{"foreign signature", foreign, common.CodeUnauthorized, "Invalid refresh token"},
		{"missing nickname", noNick, common.CodeUnauthorized, "Invalid refresh token"},
		{"missing subject", noSub, common.CodeUnauthorized, "Invalid refresh token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Refresh(context.Background(), tt.token)
			assertCoded(t, err, tt.code, tt.detail)
		})
	}
}

func TestRefresh_UnexpectedFailuresAreUnavailable(t *testing.T) {
	cfg := testConfig()
	log := logging.NewNopLogger()

	t.Run("verify", func(t *testing.T) {
		svc := NewUserService(&fakeRepo{}, &fakeHasher{}, &fakeCodec{verifyErr: errors.New("boom")}, cfg, log, nil)
		_, err := svc.Refresh(context.Background(), "tok")
		assertCoded(t, err, common.CodeServiceUnavailable, "Service unavailable")
	})

	t.Run("issue", func(t *testing.T) {
		codec := &fakeCodec{claims: &auth.Claims{Nickname: "alice"}, issueErr: errors.New("sign")}
		codec.claims.Subject = "a@example.com"
		svc := NewUserService(&fakeRepo{}, &fakeHasher{}, codec, cfg, log, nil)
		_, err := svc.Refresh(context.Background(), "tok")
		assertCoded(t, err, common.CodeServiceUnavailable, "Service unavailable")
	})
}

func TestRefresh_ConcurrentSameToken(t *testing.T) {
	f := newFixture(t)
	refresh, err := f.codec.Issue("alice@example.com", "alice", time.Hour)
	require.NoError(t, err)

	tokens := make([]string, 64)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range tokens {
		g.Go(func() error {
			tok, err := f.svc.Refresh(ctx, refresh)
			tokens[i] = tok
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, tok := range tokens {
		claims, err := f.codec.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Subject)
	}
}

// --- Logout ---

func TestLogout(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.Logout(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Logout successful", msg)

	_, err = f.svc.Logout(context.Background(), true)
	assertCoded(t, err, common.CodeInternal, "An error occurred while logging out")
}

// --- metrics ---

func counterValue(t *testing.T, g prometheus.Gatherer, name, outcome string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t)
	f.svc = NewUserService(f.repo, f.hasher, f.codec, testConfig(), logging.NewNopLogger(), metrics.NewMetrics(reg))
	ctx := context.Background()

	_, _ = f.svc.Register(ctx, "bad", "secret123", "alice")
	_, _ = f.svc.Register(ctx, "a@example.com", "secret123", "alice")
	_, _ = f.svc.Login(ctx, "a@example.com", "secret123")
	_, _ = f.svc.Refresh(ctx, "junk")

	assert.Equal(t, 1.0, counterValue(t, reg, "usersvc_registrations_total", "invalid_input"))
	assert.Equal(t, 1.0, counterValue(t, reg, "usersvc_registrations_total", "success"))
	assert.Equal(t, 1.0, counterValue(t, reg, "usersvc_logins_total", "forbidden"))
	assert.Equal(t, 1.0, counterValue(t, reg, "usersvc_refreshes_total", "unauthorized"))
	n, err := testutil.GatherAndCount(reg, "usersvc_tokens_issued_total")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "forbidden login issues no tokens")
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "success", outcomeOf(nil))
	assert.Equal(t, "conflict", outcomeOf(common.Conflict("x")))
	assert.Equal(t, "expired", outcomeOf(common.Expired("x", nil)))
	assert.Equal(t, "unavailable", outcomeOf(common.Unavailable("x", nil)))
	assert.Equal(t, "error", outcomeOf(errors.New("plain")))
}
