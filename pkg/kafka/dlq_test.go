package kafka

import (
	"testing"
)

func TestDLQTopicPrefix(t *testing.T) {
	if DLQTopicPrefix != "accountinox.dlq" {
		t.Errorf("DLQTopicPrefix = %q, want %q", DLQTopicPrefix, "accountinox.dlq")
	}
}

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		name          string
		originalTopic string
		want          string
	}{
		{
			name:          "standard topic",
			originalTopic: "accountinox.order.confirmed",
			want:          "accountinox.dlq.accountinox.order.confirmed",
		},
		{
			name:          "simple topic name",
			originalTopic: "orders",
			want:          "accountinox.dlq.orders",
		},
		{
			name:          "deeply nested topic",
			originalTopic: "accountinox.payment.stripe.webhook",
			want:          "accountinox.dlq.accountinox.payment.stripe.webhook",
		},
		{
			name:          "single word topic",
			originalTopic: "notifications",
			want:          "accountinox.dlq.notifications",
		},
		{
			name:          "topic with hyphens",
			originalTopic: "user-events",
			want:          "accountinox.dlq.user-events",
		},
		{
			name:          "topic with underscores",
			originalTopic: "inventory_updates",
			want:          "accountinox.dlq.inventory_updates",
		},
		{
			name:          "empty topic",
			originalTopic: "",
			want:          "accountinox.dlq.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DLQTopic(tt.originalTopic)
			if got != tt.want {
				t.Errorf("DLQTopic(%q) = %q, want %q", tt.originalTopic, got, tt.want)
			}
		})
	}
}

func TestDLQTopic_ContainsPrefix(t *testing.T) {
	topic := DLQTopic("some.topic")
	if len(topic) <= len(DLQTopicPrefix) {
		t.Fatalf("DLQTopic result %q should be longer than prefix %q", topic, DLQTopicPrefix)
	}
	prefix := topic[:len(DLQTopicPrefix)]
	if prefix != DLQTopicPrefix {
		t.Errorf("DLQTopic(%q) prefix = %q, want %q", "some.topic", prefix, DLQTopicPrefix)
	}
}
