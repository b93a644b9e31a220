package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage/memory"
	"burnmail/backend/internal/storage/storagetest"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	auth      *auth.Service
	mailboxes *MailboxService
	admin     *AdminService
	users     *UserService
	now       time.Time
}

func newFixture(t *testing.T, opts MailboxOptions) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), now: baseTime}
	clock := func() time.Time { return f.now }

	if opts.Domain == "" {
		opts.Domain = "temp.mail"
	}
	if opts.Retention == 0 {
		opts.Retention = 24 * time.Hour
	}
	if opts.MaxPerUser == 0 {
		opts.MaxPerUser = 5
	}

	f.auth = auth.NewService(f.store, f.store, auth.Options{
		AllowRegistration: true,
		SessionTTL:        24 * time.Hour,
	}, nil).WithClock(clock)
	f.mailboxes = NewMailboxService(f.store, f.store, opts, nil, nil).WithClock(clock)
	f.admin = NewAdminService(f.store, f.auth, nil, nil)
	f.users = NewUserService(f.store, f.store)
	f.users.now = clock
	return f
}

func (f *fixture) register(t *testing.T, username string) string {
	t.Helper()
	user, err := f.auth.Register(context.Background(), username, "password1")
	require.NoError(t, err)
	return user.ID
}

func TestMailboxCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("创建邮箱", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		alice := f.register(t, "alice")

		created, err := f.mailboxes.Create(ctx, &alice)
		require.NoError(t, err)

		local, domainPart, ok := strings.Cut(created.Address, "@")
		require.True(t, ok)
		assert.Equal(t, "temp.mail", domainPart)
		assert.GreaterOrEqual(t, len(local), 8)
		assert.LessOrEqual(t, len(local), 12)
		assert.Len(t, created.Token, 32)
		assert.Equal(t, baseTime.Add(24*time.Hour), created.ExpiresAt)

		owned, err := f.mailboxes.VerifyOwnership(ctx, created.ID, alice)
		require.NoError(t, err)
		assert.True(t, owned)
		owned, err = f.mailboxes.VerifyOwnership(ctx, created.Address, alice)
		require.NoError(t, err)
		assert.True(t, owned)
	})

	t.Run("达到上限后拒绝且不写入", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{MaxPerUser: 2})
		alice := f.register(t, "alice")

		for i := 0; i < 2; i++ {
			_, err := f.mailboxes.Create(ctx, &alice)
			require.NoError(t, err)
		}

		_, err := f.mailboxes.Create(ctx, &alice)
		assert.ErrorIs(t, err, domain.ErrMailboxLimit)
		assert.Equal(t, domain.CodeLimitExceeded, domain.CodeOf(err))

		list, err := f.mailboxes.ListForUser(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("过期邮箱不占用名额", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{MaxPerUser: 1})
		alice := f.register(t, "alice")

		_, err := f.mailboxes.Create(ctx, &alice)
		require.NoError(t, err)

		f.now = baseTime.Add(24 * time.Hour)
		_, err = f.mailboxes.Create(ctx, &alice)
		assert.NoError(t, err)
	})

	t.Run("未开启匿名模式时要求登录", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		_, err := f.mailboxes.Create(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrLoginRequired)
	})

	t.Run("匿名邮箱凭令牌访问", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{AllowAnonymous: true})
		created, err := f.mailboxes.Create(ctx, nil)
		require.NoError(t, err)

		cred := domain.AnonymousCapability{Address: created.Address, Token: created.Token}
		emails, err := f.mailboxes.ListEmails(ctx, cred, created.Address)
		require.NoError(t, err)
		assert.Empty(t, emails)

		bad := domain.AnonymousCapability{Address: created.Address, Token: "wrong"}
		_, err = f.mailboxes.ListEmails(ctx, bad, created.Address)
		assert.ErrorIs(t, err, domain.ErrMailboxTokenInvalid)
	})
}

func TestMailboxOwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, MailboxOptions{})
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	box, err := f.mailboxes.Create(ctx, &alice)
	require.NoError(t, err)
	email := storagetest.NewEmail(box.ID, "secret", baseTime)
	require.NoError(t, f.store.CreateEmail(ctx, email))

	asBob := domain.OwnedSession{UserID: bob}

	t.Run("他人无法列出邮件", func(t *testing.T) {
		_, err := f.mailboxes.ListEmails(ctx, asBob, box.Address)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})

	t.Run("他人无法读取邮件", func(t *testing.T) {
		_, err := f.mailboxes.GetEmail(ctx, asBob, box.Address, email.ID)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})

	t.Run("他人无法删除邮箱", func(t *testing.T) {
		err := f.mailboxes.Delete(ctx, bob, box.ID)
		assert.ErrorIs(t, err, domain.ErrMailboxForbidden)
	})

	t.Run("他人邮箱不出现在列表中", func(t *testing.T) {
		list, err := f.mailboxes.ListForUser(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("所有者可以读取", func(t *testing.T) {
		detail, err := f.mailboxes.GetEmail(ctx, domain.OwnedSession{UserID: alice}, box.Address, email.ID)
		require.NoError(t, err)
		assert.Equal(t, "secret", *detail.Subject)
		assert.Equal(t, "body of secret", *detail.Body)
	})

	t.Run("邮件 ID 必须属于该邮箱", func(t *testing.T) {
		other, err := f.mailboxes.Create(ctx, &alice)
		require.NoError(t, err)
		_, err = f.mailboxes.GetEmail(ctx, domain.OwnedSession{UserID: alice}, other.Address, email.ID)
		assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	})

	t.Run("缺少凭证", func(t *testing.T) {
		_, err := f.mailboxes.Authorize(ctx, nil, box.Address)
		assert.ErrorIs(t, err, domain.ErrLoginRequired)
	})

	t.Run("有主邮箱不接受邮箱令牌", func(t *testing.T) {
		cred := domain.AnonymousCapability{Address: box.Address, Token: box.Token}
		_, err := f.mailboxes.ListEmails(ctx, cred, box.Address)
		assert.ErrorIs(t, err, domain.ErrMailboxTokenInvalid)
	})

	t.Run("归属校验", func(t *testing.T) {
		owned, err := f.mailboxes.VerifyOwnership(ctx, box.ID, bob)
		require.NoError(t, err)
		assert.False(t, owned)

		owned, err = f.mailboxes.VerifyOwnership(ctx, "missing@temp.mail", alice)
		require.NoError(t, err)
		assert.False(t, owned)
	})
}

func TestMailboxDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, MailboxOptions{})
	alice := f.register(t, "alice")

	box, err := f.mailboxes.Create(ctx, &alice)
	require.NoError(t, err)
	require.NoError(t, f.store.CreateEmail(ctx, storagetest.NewEmail(box.ID, "hi", baseTime)))

	require.NoError(t, f.mailboxes.Delete(ctx, alice, box.ID))

	count, err := f.store.CountEmails(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = f.mailboxes.Delete(ctx, alice, box.ID)
	assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
}

func TestListEmailsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, MailboxOptions{})
	alice := f.register(t, "alice")
	box, err := f.mailboxes.Create(ctx, &alice)
	require.NoError(t, err)

	require.NoError(t, f.store.CreateEmail(ctx, storagetest.NewEmail(box.ID, "older", baseTime)))
	require.NoError(t, f.store.CreateEmail(ctx, storagetest.NewEmail(box.ID, "newer", baseTime.Add(time.Minute))))

	emails, err := f.mailboxes.ListEmails(ctx, domain.OwnedSession{UserID: alice}, box.Address)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "newer", *emails[0].Subject)
	assert.Equal(t, "older", *emails[1].Subject)
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, MailboxOptions{})
	alice := f.register(t, "alice")
	_, err := f.mailboxes.Create(ctx, &alice)
	require.NoError(t, err)

	profile, err := f.users.Profile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, domain.RoleUser, profile.Role)
	assert.Equal(t, 1, profile.MailboxCount)

	_, err = f.users.Profile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAdminService(t *testing.T) {
	ctx := context.Background()

	t.Run("统计数据", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		alice := f.register(t, "alice")
		bob := f.register(t, "bob")
		require.NoError(t, f.store.UpdateUserStatus(ctx, bob, domain.StatusDisabled))
		box, err := f.mailboxes.Create(ctx, &alice)
		require.NoError(t, err)
		require.NoError(t, f.store.CreateEmail(ctx, storagetest.NewEmail(box.ID, "hi", baseTime)))

		stats, err := f.admin.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.SystemStats{TotalUsers: 2, ActiveUsers: 1, TotalMailboxes: 1, TotalEmails: 1}, *stats)
	})

	t.Run("禁用用户后会话立即失效且无法登录", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		admin := f.register(t, "admin")
		x := f.register(t, "userx")
		login, err := f.auth.Login(ctx, "userx", "password1")
		require.NoError(t, err)

		require.NoError(t, f.admin.SetUserStatus(ctx, admin, x, domain.StatusDisabled))

		_, err = f.auth.ValidateSession(ctx, login.Token)
		assert.ErrorIs(t, err, domain.ErrSessionInvalid)
		_, err = f.auth.Login(ctx, "userx", "password1")
		assert.ErrorIs(t, err, domain.ErrAccountDisabled)

		require.NoError(t, f.admin.SetUserStatus(ctx, admin, x, domain.StatusActive))
		_, err = f.auth.Login(ctx, "userx", "password1")
		assert.NoError(t, err)
	})

	t.Run("不能操作自己的账户", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		admin := f.register(t, "admin")

		err := f.admin.SetUserStatus(ctx, admin, admin, domain.StatusDisabled)
		assert.ErrorIs(t, err, domain.ErrCannotModifySelf)
		err = f.admin.DeleteUser(ctx, admin, admin)
		assert.ErrorIs(t, err, domain.ErrCannotModifySelf)
	})

	t.Run("非法状态值", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		admin := f.register(t, "admin")
		x := f.register(t, "userx")

		err := f.admin.SetUserStatus(ctx, admin, x, domain.UserStatus("banned"))
		assert.Equal(t, domain.CodeBadRequest, domain.CodeOf(err))
	})

	t.Run("用户不存在", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		admin := f.register(t, "admin")

		err := f.admin.SetUserStatus(ctx, admin, "missing", domain.StatusDisabled)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		err = f.admin.DeleteUser(ctx, admin, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("删除用户级联删除邮箱", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		admin := f.register(t, "admin")
		x := f.register(t, "userx")
		_, err := f.mailboxes.Create(ctx, &x)
		require.NoError(t, err)

		require.NoError(t, f.admin.DeleteUser(ctx, admin, x))

		count, err := f.store.CountMailboxes(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("分页列出用户与邮箱", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		alice := f.register(t, "alice")
		f.register(t, "bob")
		f.register(t, "carol")
		box, err := f.mailboxes.Create(ctx, &alice)
		require.NoError(t, err)

		users, err := f.admin.ListUsers(ctx, domain.PageRequest{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, users.Items, 2)
		assert.Equal(t, int64(3), users.Total)
		assert.Equal(t, 2, users.TotalPages)

		mailboxes, err := f.admin.ListMailboxes(ctx, domain.PageRequest{})
		require.NoError(t, err)
		require.Len(t, mailboxes.Items, 1)
		assert.Equal(t, domain.DefaultPageSize, mailboxes.PageSize)
		require.NotNil(t, mailboxes.Items[0].OwnerUsername)
		assert.Equal(t, "alice", *mailboxes.Items[0].OwnerUsername)

		require.NoError(t, f.admin.DeleteMailbox(ctx, "admin-id", box.ID))
		err = f.admin.DeleteMailbox(ctx, "admin-id", box.ID)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})
}

// failingEmails 邮件清理阶段始终失败的存储
type failingEmails struct {
	*memory.Store
}

func (failingEmails) DeleteEmailsReceivedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("disk full")
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()

	t.Run("按保留期清理邮件与空邮箱", func(t *testing.T) {
		store := memory.NewStore()
		now := baseTime

		expiredEmpty := storagetest.NewMailbox("empty@temp.mail", nil, now.Add(-48*time.Hour), 24*time.Hour)
		expiredWithMail := storagetest.NewMailbox("full@temp.mail", nil, now.Add(-48*time.Hour), 24*time.Hour)
		live := storagetest.NewMailbox("live@temp.mail", nil, now.Add(-time.Hour), 24*time.Hour)
		for _, m := range []*domain.Mailbox{expiredEmpty, expiredWithMail, live} {
			require.NoError(t, store.CreateMailbox(ctx, m))
		}

		old := storagetest.NewEmail(live.ID, "old", now.Add(-25*time.Hour))
		recent := storagetest.NewEmail(live.ID, "recent", now.Add(-time.Hour))
		kept := storagetest.NewEmail(expiredWithMail.ID, "kept", now.Add(-2*time.Hour))
		for _, e := range []*domain.Email{old, recent, kept} {
			require.NoError(t, store.CreateEmail(ctx, e))
		}

		sweeper := NewSweeper(store, 24*time.Hour, nil, nil).WithClock(func() time.Time { return now })
		result := sweeper.Run(ctx)

		assert.Empty(t, result.Errors)
		assert.Equal(t, int64(1), result.Emails)
		assert.Equal(t, int64(1), result.Mailboxes)

		_, err := store.GetEmail(ctx, old.ID, live.ID)
		assert.Error(t, err)
		_, err = store.GetEmail(ctx, recent.ID, live.ID)
		assert.NoError(t, err)
		_, err = store.GetMailboxByID(ctx, expiredEmpty.ID)
		assert.Error(t, err)
		_, err = store.GetMailboxByID(ctx, expiredWithMail.ID)
		assert.NoError(t, err)

		// 邮件超出保留期后，下一轮清理删除该邮箱
		later := now.Add(23 * time.Hour)
		result = sweeper.WithClock(func() time.Time { return later }).Run(ctx)
		assert.Equal(t, int64(1), result.Emails)
		assert.Equal(t, int64(1), result.Mailboxes)
		_, err = store.GetMailboxByID(ctx, expiredWithMail.ID)
		assert.Error(t, err)
	})

	t.Run("清理过期会话", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		f.register(t, "alice")
		_, err := f.auth.Login(ctx, "alice", "password1")
		require.NoError(t, err)

		result := NewSweeper(f.store, 24*time.Hour, nil, nil).
			WithClock(func() time.Time { return baseTime.Add(25 * time.Hour) }).
			Run(ctx)
		assert.Equal(t, int64(1), result.Sessions)
	})

	t.Run("单个阶段失败不影响其他阶段", func(t *testing.T) {
		store := memory.NewStore()
		empty := storagetest.NewMailbox("empty@temp.mail", nil, baseTime.Add(-48*time.Hour), 24*time.Hour)
		require.NoError(t, store.CreateMailbox(ctx, empty))

		sweeper := NewSweeper(failingEmails{store}, 24*time.Hour, nil, nil).
			WithClock(func() time.Time { return baseTime })
		result := sweeper.Run(ctx)

		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Error(), "sweep emails")
		assert.Equal(t, int64(1), result.Mailboxes)
	})
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("创建管理员且可重复执行", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})

		require.NoError(t, EnsureAdmin(ctx, f.store, f.auth, "root", "rootpass1", nil))
		require.NoError(t, EnsureAdmin(ctx, f.store, f.auth, "root", "rootpass1", nil))

		users, err := f.store.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), users)

		login, err := f.auth.Login(ctx, "root", "rootpass1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, login.User.Role)
	})

	t.Run("未配置时跳过", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		require.NoError(t, EnsureAdmin(ctx, f.store, f.auth, "", "", nil))

		ok, err := f.store.HasAdmin(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("并发创建冲突视为成功", func(t *testing.T) {
		f := newFixture(t, MailboxOptions{})
		err := EnsureAdmin(ctx, f.store, conflictCreator{}, "root", "rootpass1", nil)
		assert.NoError(t, err)
	})
}

type conflictCreator struct{}

func (conflictCreator) CreateAdmin(context.Context, string, string) (*domain.User, error) {
	return nil, domain.ErrUsernameExists
}
