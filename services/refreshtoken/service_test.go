package refreshtoken

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/testutils"
	"gorm.io/gorm"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.Mock) {
	t.Helper()
	db := testutils.SetupTestDB(t, &RefreshToken{})
	clk := testutils.NewTestClock()
	service, err := NewService(db, testutils.GetTestConfig(), clk, nil)
	require.NoError(t, err)
	return service, db, clk
}

func loadToken(t *testing.T, db *gorm.DB, id uint) RefreshToken {
	t.Helper()
	var record RefreshToken
	require.NoError(t, db.First(&record, id).Error)
	return record
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	issued, err := service.Create(ctx, 1, SessionInfo{IPAddress: "10.0.0.1", UserAgent: chromeUA})
	require.NoError(t, err)

	t.Run("secret format", func(t *testing.T) {
		idPart, verifier, found := strings.Cut(issued.Secret, ".")
		require.True(t, found)
		assert.Equal(t, strconv.FormatUint(uint64(issued.TokenID), 10), idPart)
		assert.Len(t, verifier, 43)
	})

	t.Run("stored record", func(t *testing.T) {
		record := loadToken(t, db, issued.TokenID)
		assert.Equal(t, uint(1), record.AccountID)
		assert.Equal(t, StatusActive, record.Status)
		assert.NotContains(t, record.TokenHash, issued.Secret)
		assert.True(t, strings.HasPrefix(record.TokenHash, "$2"))
		assert.Equal(t, "10.0.0.1", record.IssuedFromIP)
		assert.Equal(t, chromeUA, record.UserAgent)
		assert.Contains(t, record.DeviceInfo, "Chrome")
		assert.Equal(t, clk.Now().Add(30*24*time.Hour).Unix(), record.ExpiresAt.Unix())
		assert.Equal(t, issued.ExpiresAt.Unix(), record.ExpiresAt.Unix())
	})

	t.Run("secrets are unique", func(t *testing.T) {
		other, err := service.Create(ctx, 1, SessionInfo{})
		require.NoError(t, err)
		assert.NotEqual(t, issued.Secret, other.Secret)
		assert.NotEqual(t, issued.TokenID, other.TokenID)
	})
}

func TestService_Validate(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	issued, err := service.Create(ctx, 5, SessionInfo{})
	require.NoError(t, err)

	t.Run("valid secret", func(t *testing.T) {
		record, err := service.Validate(ctx, issued.Secret)
		require.NoError(t, err)
		assert.Equal(t, issued.TokenID, record.ID)
		assert.Equal(t, uint(5), record.AccountID)
	})

	t.Run("wrong verifier", func(t *testing.T) {
		forged := strconv.FormatUint(uint64(issued.TokenID), 10) + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
		_, err := service.Validate(ctx, forged)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})

	t.Run("verifier moved to another id", func(t *testing.T) {
		other, err := service.Create(ctx, 6, SessionInfo{})
		require.NoError(t, err)
		_, verifier, _ := strings.Cut(issued.Secret, ".")
		forged := strconv.FormatUint(uint64(other.TokenID), 10) + "." + verifier

		_, err = service.Validate(ctx, forged)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, verifier, _ := strings.Cut(issued.Secret, ".")
		_, err := service.Validate(ctx, "999999."+verifier)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, secret := range []string{"", "abc", ".", "1.", ".abc", "0.abc", "-1.abc", "x.abc", "1." + strings.Repeat("a", 80)} {
			_, err := service.Validate(ctx, secret)
			testutils.AssertErrorType(t, ErrInvalidToken, err)
		}
	})
}

func TestService_ExpiryBeforeSweep(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	issued, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	start := clk.Now()

	clk.Set(start.Add(30*24*time.Hour - time.Second))
	_, err = service.Validate(ctx, issued.Secret)
	require.NoError(t, err)

	clk.Set(start.Add(30 * 24 * time.Hour))
	_, err = service.Validate(ctx, issued.Secret)
	testutils.AssertErrorType(t, ErrInvalidToken, err)

	assert.Equal(t, StatusActive, loadToken(t, db, issued.TokenID).Status)

	count, err := service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, StatusExpired, loadToken(t, db, issued.TokenID).Status)

	_, err = service.Validate(ctx, issued.Secret)
	testutils.AssertErrorType(t, ErrInvalidToken, err)
}

func TestService_SweepExpired(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	old, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	revoked, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	require.NoError(t, service.Revoke(ctx, revoked.TokenID, ReasonUserLogout, ""))

	clk.Advance(20 * 24 * time.Hour)
	fresh, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)

	clk.Advance(11 * 24 * time.Hour)
	count, err := service.SweepExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count)
	assert.Equal(t, StatusExpired, loadToken(t, db, old.TokenID).Status)
	assert.Equal(t, StatusRevoked, loadToken(t, db, revoked.TokenID).Status)
	assert.Equal(t, StatusActive, loadToken(t, db, fresh.TokenID).Status)

	count, err = service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_Revoke(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	first, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	sibling, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, first.TokenID, ReasonUserLogout, "192.168.1.9"))

	t.Run("audit fields", func(t *testing.T) {
		record := loadToken(t, db, first.TokenID)
		assert.Equal(t, StatusRevoked, record.Status)
		assert.Equal(t, ReasonUserLogout, record.RevocationReason)
		assert.Equal(t, "192.168.1.9", record.RevokedFromIP)
		require.NotNil(t, record.RevokedAt)
		assert.Equal(t, clk.Now().Unix(), record.RevokedAt.Unix())
	})

	t.Run("revoked secret is refused", func(t *testing.T) {
		_, err := service.Validate(ctx, first.Secret)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})

	t.Run("sibling unaffected", func(t *testing.T) {
		record, err := service.Validate(ctx, sibling.Secret)
		require.NoError(t, err)
		assert.Equal(t, sibling.TokenID, record.ID)
	})

	t.Run("idempotent", func(t *testing.T) {
		before := loadToken(t, db, first.TokenID)
		clk.Advance(time.Hour)

		require.NoError(t, service.Revoke(ctx, first.TokenID, "other", "10.0.0.1"))

		after := loadToken(t, db, first.TokenID)
		assert.Equal(t, StatusRevoked, after.Status)
		assert.Equal(t, before.RevocationReason, after.RevocationReason)
		assert.Equal(t, before.RevokedFromIP, after.RevokedFromIP)
		assert.Equal(t, before.RevokedAt.Unix(), after.RevokedAt.Unix())
	})

	t.Run("terminal states are kept", func(t *testing.T) {
		expiring, err := service.Create(ctx, 2, SessionInfo{})
		require.NoError(t, err)
		clk.Advance(31 * 24 * time.Hour)
		_, err = service.SweepExpired(ctx)
		require.NoError(t, err)

		require.NoError(t, service.Revoke(ctx, expiring.TokenID, ReasonUserLogout, ""))
		assert.Equal(t, StatusExpired, loadToken(t, db, expiring.TokenID).Status)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		assert.NoError(t, service.Revoke(ctx, 424242, ReasonUserLogout, ""))
	})
}

func TestService_RevokeAllForAccount(t *testing.T) {
	ctx := context.Background()
	service, db, _ := newTestService(t)

	a1, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	a2, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	b1, err := service.Create(ctx, 2, SessionInfo{})
	require.NoError(t, err)

	count, err := service.RevokeAllForAccount(ctx, 1, ReasonUserLogoutAll, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, issued := range []*IssuedToken{a1, a2} {
		record := loadToken(t, db, issued.TokenID)
		assert.Equal(t, StatusRevoked, record.Status)
		assert.Equal(t, ReasonUserLogoutAll, record.RevocationReason)

		_, err := service.Validate(ctx, issued.Secret)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	}

	_, err = service.Validate(ctx, b1.Secret)
	assert.NoError(t, err)

	count, err = service.RevokeAllForAccount(ctx, 1, ReasonUserLogoutAll, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_Rotate(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	original, err := service.Create(ctx, 3, SessionInfo{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	clk.Advance(time.Minute)

	rotation, err := service.Rotate(ctx, original.Secret, SessionInfo{IPAddress: "10.0.0.2", UserAgent: chromeUA})
	require.NoError(t, err)

	t.Run("successor is usable", func(t *testing.T) {
		assert.Equal(t, uint(3), rotation.AccountID)
		assert.NotEqual(t, original.Secret, rotation.Token.Secret)

		record, err := service.Validate(ctx, rotation.Token.Secret)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.2", record.IssuedFromIP)
		assert.Equal(t, clk.Now().Add(30*24*time.Hour).Unix(), record.ExpiresAt.Unix())
	})

	t.Run("predecessor is replaced", func(t *testing.T) {
		record := loadToken(t, db, original.TokenID)
		assert.Equal(t, StatusReplaced, record.Status)
		require.NotNil(t, record.ReplacedByID)
		assert.Equal(t, rotation.Token.TokenID, *record.ReplacedByID)
		require.NotNil(t, record.ReplacedAt)

		_, err := service.Validate(ctx, original.Secret)
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})

	t.Run("replaying the predecessor fails", func(t *testing.T) {
		_, err := service.Rotate(ctx, original.Secret, SessionInfo{})
		testutils.AssertErrorType(t, ErrInvalidToken, err)

		var count int64
		require.NoError(t, db.Model(&RefreshToken{}).Where("account_id = ?", 3).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("revoked secret cannot rotate", func(t *testing.T) {
		require.NoError(t, service.Revoke(ctx, rotation.Token.TokenID, ReasonUserLogout, ""))
		_, err := service.Rotate(ctx, rotation.Token.Secret, SessionInfo{})
		testutils.AssertErrorType(t, ErrInvalidToken, err)
	})
}

func TestService_RotateRace(t *testing.T) {
	ctx := context.Background()
	service, db, _ := newTestService(t)

	original, err := service.Create(ctx, 9, SessionInfo{})
	require.NoError(t, err)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Rotate(ctx, original.Secret, SessionInfo{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, ErrInvalidToken) {
				failures++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, failures)

	var active int64
	require.NoError(t, db.Model(&RefreshToken{}).
		Where("account_id = ? AND status = ?", 9, StatusActive).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestService_ListActiveAndTouch(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	first, err := service.Create(ctx, 1, SessionInfo{UserAgent: chromeUA})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	revoked, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	require.NoError(t, service.Revoke(ctx, revoked.TokenID, ReasonUserLogout, ""))
	_, err = service.Create(ctx, 2, SessionInfo{})
	require.NoError(t, err)

	tokens, err := service.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, second.TokenID, tokens[0].ID)
	assert.Equal(t, first.TokenID, tokens[1].ID)

	clk.Advance(time.Hour)
	require.NoError(t, service.Touch(ctx, first.TokenID))
	record := loadToken(t, db, first.TokenID)
	require.NotNil(t, record.LastUsedAt)
	assert.Equal(t, clk.Now().Unix(), record.LastUsedAt.Unix())
}

func TestService_StorageFailure(t *testing.T) {
	service, _, _ := newTestService(t)
	issued, err := service.Create(context.Background(), 1, SessionInfo{})
	require.NoError(t, err)

	t.Run("cancelled context", func(t *testing.T) {
		ctx := testutils.CancelledContext()

		_, err := service.Validate(ctx, issued.Secret)
		testutils.AssertErrorType(t, ErrStorage, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, context.Canceled)

		_, err = service.Create(ctx, 1, SessionInfo{})
		testutils.AssertErrorType(t, ErrStorage, err)
	})

	t.Run("closed database", func(t *testing.T) {
		broken, err := NewService(testutils.ClosedDB(t, &RefreshToken{}), testutils.GetTestConfig(), nil, nil)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = broken.Validate(ctx, issued.Secret)
		testutils.AssertErrorType(t, ErrStorage, err)

		err = broken.Revoke(ctx, 1, ReasonUserLogout, "")
		testutils.AssertErrorType(t, ErrStorage, err)

		_, err = broken.RevokeAllForAccount(ctx, 1, ReasonUserLogoutAll, "")
		testutils.AssertErrorType(t, ErrStorage, err)

		_, err = broken.SweepExpired(ctx)
		testutils.AssertErrorType(t, ErrStorage, err)

		_, err = broken.ListActive(ctx, 1)
		testutils.AssertErrorType(t, ErrStorage, err)
	})
}

func TestService_StartSweeper(t *testing.T) {
	ctx := context.Background()
	service, db, clk := newTestService(t)

	issued, err := service.Create(ctx, 1, SessionInfo{})
	require.NoError(t, err)
	clk.Advance(31 * 24 * time.Hour)

	stop := service.StartSweeper(10 * time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool {
		var record RefreshToken
		if err := db.First(&record, issued.TokenID).Error; err != nil {
			return false
		}
		return record.Status == StatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	stop()
	stop()
}

func TestParseDevice(t *testing.T) {
	device := ParseDevice(chromeUA)
	assert.Contains(t, device.Browser, "Chrome")
	assert.Contains(t, device.OS, "Windows")
	assert.Equal(t, "Desktop", device.Type)
	assert.Contains(t, device.String(), " on ")

	unknown := ParseDevice("")
	assert.Equal(t, "Unknown Browser", unknown.Browser)
	assert.Equal(t, "Unknown", unknown.Type)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 5, "abcde"},
		{"rune straddles the cut", "abcd" + "é", 5, "abcd"},
		{"rune ends at the cut", "abc" + "é" + "x", 5, "abcé"},
		{"four byte rune", "ab" + "😀" + "c", 5, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestService_Create_LongMultibyteUserAgent(t *testing.T) {
	service, db, _ := newTestService(t)
	userAgent := strings.Repeat("a", 499) + "é" + "tail"

	issued, err := service.Create(context.Background(), 1, SessionInfo{UserAgent: userAgent})
	require.NoError(t, err)

	record := loadToken(t, db, issued.TokenID)
	assert.True(t, utf8.ValidString(record.UserAgent))
	assert.Equal(t, strings.Repeat("a", 499), record.UserAgent)
}
