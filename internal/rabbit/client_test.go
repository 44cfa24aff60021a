package rabbit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"festreg/internal/notify"
)

func TestRoutingKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tpl  notify.Template
		want string
	}{
		{tpl: notify.TemplateRegistrationPending, want: "notify.registration_pending"},
		{tpl: notify.TemplatePaymentRejected, want: "notify.payment_rejected"},
		{tpl: notify.TemplateAccountCreated, want: "notify.account_created"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tpl), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RoutingKey(tt.tpl))
		})
	}
}

func TestTopologyDeadLetterNames(t *testing.T) {
	t.Parallel()
	topo := Topology{Exchange: "festreg.notifications", Queue: "festreg.notifications.email"}

	assert.Equal(t, "festreg.notifications.email.dead", topo.deadLetterQueue())
	assert.Equal(t, "festreg.notifications.dlx", topo.deadLetterExchange())
}
