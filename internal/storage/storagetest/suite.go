// Package storagetest 提供所有 storage.Store 实现共用的行为测试。
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// Factory 为每个子测试创建一个空的存储实例
type Factory func(t *testing.T) storage.Store

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Run 执行完整的存储行为测试
func Run(t *testing.T, newStore Factory) {
	t.Run("用户", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("会话", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("邮箱", func(t *testing.T) { testMailboxes(t, newStore(t)) })
	t.Run("邮件", func(t *testing.T) { testEmails(t, newStore(t)) })
	t.Run("级联删除", func(t *testing.T) { testCascade(t, newStore(t)) })
	t.Run("过期清理", func(t *testing.T) { testExpiry(t, newStore(t)) })
}

// NewUser 构造测试用户
func NewUser(username string, role domain.UserRole, createdAt time.Time) *domain.User {
	return &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "salt:key",
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    createdAt,
	}
}

// NewMailbox 构造测试邮箱
func NewMailbox(address string, owner *string, createdAt time.Time, ttl time.Duration) *domain.Mailbox {
	return &domain.Mailbox{
		ID:        uuid.NewString(),
		Address:   address,
		Token:     uuid.NewString(),
		UserID:    owner,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

// NewEmail 构造测试邮件
func NewEmail(mailboxID, subject string, receivedAt time.Time) *domain.Email {
	body := "body of " + subject
	return &domain.Email{
		ID:          uuid.NewString(),
		MailboxID:   mailboxID,
		FromAddress: "sender@example.com",
		ToAddress:   "rcpt@temp.mail",
		Subject:     &subject,
		Body:        &body,
		ReceivedAt:  receivedAt,
	}
}

func testUsers(t *testing.T, store storage.Store) {
	ctx := context.Background()

	alice := NewUser("alice", domain.RoleUser, baseTime)
	require.NoError(t, store.CreateUser(ctx, alice))

	t.Run("用户名唯一", func(t *testing.T) {
		dup := NewUser("alice", domain.RoleUser, baseTime)
		assert.ErrorIs(t, store.CreateUser(ctx, dup), storage.ErrUsernameTaken)
	})

	t.Run("按用户名和 ID 查询", func(t *testing.T) {
		got, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "salt:key", got.PasswordHash)

		got, err = store.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, domain.RoleUser, got.Role)
		assert.Equal(t, domain.StatusActive, got.Status)

		_, err = store.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		_, err = store.GetUserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("修改状态、密码与用户名", func(t *testing.T) {
		require.NoError(t, store.UpdateUserStatus(ctx, alice.ID, domain.StatusDisabled))
		require.NoError(t, store.UpdateUserPassword(ctx, alice.ID, "new:hash"))
		require.NoError(t, store.UpdateUsername(ctx, alice.ID, "alice2"))

		got, err := store.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDisabled, got.Status)
		assert.Equal(t, "new:hash", got.PasswordHash)
		assert.Equal(t, "alice2", got.Username)

		_, err = store.GetUserByUsername(ctx, "alice")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("改名冲突", func(t *testing.T) {
		bob := NewUser("bob", domain.RoleUser, baseTime.Add(time.Minute))
		require.NoError(t, store.CreateUser(ctx, bob))
		assert.ErrorIs(t, store.UpdateUsername(ctx, bob.ID, "alice2"), storage.ErrUsernameTaken)
	})

	t.Run("统计与分页", func(t *testing.T) {
		hasAdmin, err := store.HasAdmin(ctx)
		require.NoError(t, err)
		assert.False(t, hasAdmin)

		admin := NewUser("root", domain.RoleAdmin, baseTime.Add(2*time.Minute))
		require.NoError(t, store.CreateUser(ctx, admin))

		hasAdmin, err = store.HasAdmin(ctx)
		require.NoError(t, err)
		assert.True(t, hasAdmin)

		total, err := store.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		active, err := store.CountActiveUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), active)

		users, total, err := store.ListUsers(ctx, domain.PageRequest{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, users, 2)
		assert.Equal(t, "root", users[0].Username, "按创建时间倒序")

		users, _, err = store.ListUsers(ctx, domain.PageRequest{Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice2", users[0].Username)
	})
}

func testSessions(t *testing.T, store storage.Store) {
	ctx := context.Background()
	user := NewUser("carol", domain.RoleUser, baseTime)
	require.NoError(t, store.CreateUser(ctx, user))

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     "token-carol",
		CreatedAt: baseTime,
		ExpiresAt: baseTime.Add(time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	t.Run("有效期内可查到", func(t *testing.T) {
		got, err := store.FindValidSession(ctx, "token-carol", baseTime.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)
		assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))
	})

	t.Run("到期时刻视为无效", func(t *testing.T) {
		_, err := store.FindValidSession(ctx, "token-carol", baseTime.Add(time.Hour))
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	})

	t.Run("删除幂等", func(t *testing.T) {
		require.NoError(t, store.DeleteSession(ctx, "token-carol"))
		require.NoError(t, store.DeleteSession(ctx, "token-carol"))
		_, err := store.FindValidSession(ctx, "token-carol", baseTime)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	})

	t.Run("删除用户全部会话", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.CreateSession(ctx, &domain.Session{
				ID:        uuid.NewString(),
				UserID:    user.ID,
				Token:     fmt.Sprintf("token-%d", i),
				CreatedAt: baseTime,
				ExpiresAt: baseTime.Add(time.Hour),
			}))
		}
		count, err := store.DeleteUserSessions(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		_, err = store.FindValidSession(ctx, "token-0", baseTime)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	})
}

func testMailboxes(t *testing.T, store storage.Store) {
	ctx := context.Background()
	user := NewUser("dave", domain.RoleUser, baseTime)
	other := NewUser("erin", domain.RoleUser, baseTime)
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.CreateUser(ctx, other))

	mb := NewMailbox("abcdefgh@temp.mail", &user.ID, baseTime, 24*time.Hour)
	require.NoError(t, store.CreateMailbox(ctx, mb))

	t.Run("地址唯一", func(t *testing.T) {
		dup := NewMailbox("abcdefgh@temp.mail", nil, baseTime, time.Hour)
		assert.ErrorIs(t, store.CreateMailbox(ctx, dup), storage.ErrAddressTaken)
	})

	t.Run("点查询", func(t *testing.T) {
		got, err := store.GetMailboxByID(ctx, mb.ID)
		require.NoError(t, err)
		assert.Equal(t, mb.Address, got.Address)
		require.NotNil(t, got.UserID)
		assert.Equal(t, user.ID, *got.UserID)

		got, err = store.GetMailboxByAddress(ctx, mb.Address)
		require.NoError(t, err)
		assert.Equal(t, mb.ID, got.ID)

		got, err = store.GetMailboxByToken(ctx, mb.Token)
		require.NoError(t, err)
		assert.Equal(t, mb.ID, got.ID)

		_, err = store.GetMailboxByAddress(ctx, "missing@temp.mail")
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})

	t.Run("令牌访问校验", func(t *testing.T) {
		got, err := store.ValidateMailboxAccess(ctx, mb.Address, mb.Token)
		require.NoError(t, err)
		assert.Equal(t, mb.ID, got.ID)

		_, err = store.ValidateMailboxAccess(ctx, mb.Address, "wrong")
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})

	t.Run("按用户查询与计数", func(t *testing.T) {
		expired := NewMailbox("expired1@temp.mail", &user.ID, baseTime.Add(-48*time.Hour), 24*time.Hour)
		require.NoError(t, store.CreateMailbox(ctx, expired))

		list, err := store.ListUserMailboxes(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, mb.ID, list[0].ID, "按创建时间倒序")

		count, err := store.CountUserMailboxes(ctx, user.ID, baseTime)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "只统计未过期邮箱")

		list, err = store.ListUserMailboxes(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("管理分页带所有者", func(t *testing.T) {
		anon := NewMailbox("anonymous@temp.mail", nil, baseTime.Add(time.Minute), time.Hour)
		require.NoError(t, store.CreateMailbox(ctx, anon))

		items, total, err := store.ListMailboxes(ctx, domain.PageRequest{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 3)
		assert.Equal(t, anon.ID, items[0].ID)
		assert.Nil(t, items[0].OwnerUsername)
		require.NotNil(t, items[1].OwnerUsername)
		assert.Equal(t, "dave", *items[1].OwnerUsername)

		count, err := store.CountMailboxes(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("删除幂等", func(t *testing.T) {
		require.NoError(t, store.DeleteMailbox(ctx, mb.ID))
		require.NoError(t, store.DeleteMailbox(ctx, mb.ID))
		_, err := store.GetMailboxByID(ctx, mb.ID)
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})
}

func testEmails(t *testing.T, store storage.Store) {
	ctx := context.Background()
	mb := NewMailbox("inbox123@temp.mail", nil, baseTime, 24*time.Hour)
	other := NewMailbox("other123@temp.mail", nil, baseTime, 24*time.Hour)
	require.NoError(t, store.CreateMailbox(ctx, mb))
	require.NoError(t, store.CreateMailbox(ctx, other))

	older := NewEmail(mb.ID, "older", baseTime.Add(time.Minute))
	newer := NewEmail(mb.ID, "newer", baseTime.Add(2*time.Minute))
	require.NoError(t, store.CreateEmail(ctx, older))
	require.NoError(t, store.CreateEmail(ctx, newer))

	t.Run("列表按时间倒序", func(t *testing.T) {
		list, err := store.ListEmails(ctx, mb.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		require.NotNil(t, list[0].Subject)
		assert.Equal(t, "newer", *list[0].Subject)
		assert.Equal(t, "sender@example.com", list[0].From)
	})

	t.Run("详情限定在邮箱内", func(t *testing.T) {
		got, err := store.GetEmail(ctx, older.ID, mb.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Body)
		assert.Equal(t, "body of older", *got.Body)
		assert.Equal(t, "rcpt@temp.mail", got.ToAddress)

		_, err = store.GetEmail(ctx, older.ID, other.ID)
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})

	t.Run("空主题与正文", func(t *testing.T) {
		email := NewEmail(other.ID, "", baseTime)
		email.Subject = nil
		email.Body = nil
		require.NoError(t, store.CreateEmail(ctx, email))

		got, err := store.GetEmail(ctx, email.ID, other.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Subject)
		assert.Nil(t, got.Body)
	})

	t.Run("计数", func(t *testing.T) {
		count, err := store.CountEmails(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func testCascade(t *testing.T, store storage.Store) {
	ctx := context.Background()
	user := NewUser("frank", domain.RoleUser, baseTime)
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.CreateSession(ctx, &domain.Session{
		ID: uuid.NewString(), UserID: user.ID, Token: "token-frank",
		CreatedAt: baseTime, ExpiresAt: baseTime.Add(time.Hour),
	}))

	owned := NewMailbox("frankbox@temp.mail", &user.ID, baseTime, 24*time.Hour)
	require.NoError(t, store.CreateMailbox(ctx, owned))
	email := NewEmail(owned.ID, "hello", baseTime)
	require.NoError(t, store.CreateEmail(ctx, email))

	loose := NewMailbox("loosebox@temp.mail", nil, baseTime, 24*time.Hour)
	require.NoError(t, store.CreateMailbox(ctx, loose))
	require.NoError(t, store.CreateEmail(ctx, NewEmail(loose.ID, "loose", baseTime)))

	t.Run("删除邮箱级联删除邮件", func(t *testing.T) {
		require.NoError(t, store.DeleteMailbox(ctx, loose.ID))
		count, err := store.CountEmails(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("删除用户级联删除会话、邮箱与邮件", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(ctx, user.ID))

		_, err := store.GetUserByID(ctx, user.ID)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		_, err = store.FindValidSession(ctx, "token-frank", baseTime)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)
		_, err = store.GetMailboxByID(ctx, owned.ID)
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
		_, err = store.GetEmail(ctx, email.ID, owned.ID)
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)

		count, err := store.CountEmails(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("删除不存在的用户", func(t *testing.T) {
		err := store.DeleteUser(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func testExpiry(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := baseTime
	user := NewUser("grace", domain.RoleUser, now)
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.CreateSession(ctx, &domain.Session{
		ID: uuid.NewString(), UserID: user.ID, Token: "expired-session",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.CreateSession(ctx, &domain.Session{
		ID: uuid.NewString(), UserID: user.ID, Token: "live-session",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	count, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	_, err = store.FindValidSession(ctx, "live-session", now)
	assert.NoError(t, err)

	emptyExpired := NewMailbox("emptyexp@temp.mail", nil, now.Add(-48*time.Hour), 24*time.Hour)
	fullExpired := NewMailbox("fullexp1@temp.mail", nil, now.Add(-48*time.Hour), 24*time.Hour)
	live := NewMailbox("livebox1@temp.mail", nil, now, 24*time.Hour)
	for _, mb := range []*domain.Mailbox{emptyExpired, fullExpired, live} {
		require.NoError(t, store.CreateMailbox(ctx, mb))
	}

	stale := NewEmail(fullExpired.ID, "stale", now.Add(-25*time.Hour))
	fresh := NewEmail(fullExpired.ID, "fresh", now.Add(-time.Hour))
	require.NoError(t, store.CreateEmail(ctx, stale))
	require.NoError(t, store.CreateEmail(ctx, fresh))

	deleted, err := store.DeleteEmailsReceivedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteExpiredMailboxes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "只删除已过期且为空的邮箱")

	_, err = store.GetMailboxByID(ctx, emptyExpired.ID)
	assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	_, err = store.GetMailboxByID(ctx, fullExpired.ID)
	assert.NoError(t, err)
	_, err = store.GetMailboxByID(ctx, live.ID)
	assert.NoError(t, err)

	// 邮件过期后邮箱在下一轮清理中被删除
	deleted, err = store.DeleteEmailsReceivedBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	deleted, err = store.DeleteExpiredMailboxes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
