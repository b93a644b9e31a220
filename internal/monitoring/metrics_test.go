package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("重复创建不会冲突", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewMetrics(nil)
			NewMetrics(nil)
		})
	})

	t.Run("记录接收与清理指标", func(t *testing.T) {
		m := NewMetrics(nil)
		m.RecordIntake("stored", time.Millisecond)
		m.RecordIntake("stored", time.Millisecond)
		m.RecordIntake("unknown_mailbox", time.Millisecond)
		m.RecordSweep("emails", 3)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakeTotal.WithLabelValues("stored")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.IntakeTotal.WithLabelValues("unknown_mailbox")))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.SweeperDeleted.WithLabelValues("emails")))
	})

	t.Run("nil 指标可以安全调用", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.RecordIntake("stored", time.Second)
			m.RecordSweep("sessions", 1)
			m.RecordRateLimitBlock("ip")
		})
	})

	t.Run("暴露指标端点", func(t *testing.T) {
		m := NewMetrics(nil)
		m.RecordMailboxCreated()

		rec := httptest.NewRecorder()
		m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tempmail_mailboxes_created_total 1")
	})
}
