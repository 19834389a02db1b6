package events

// Topic constants for payment events emitted by the backend.
const (
	// TopicChargeSuccess is emitted for a signed charge.success webhook.
	TopicChargeSuccess = "charge.success"
	// TopicPaymentVerified is emitted after a successful verification call.
	TopicPaymentVerified = "payment.verified"
)

// DefaultTopics returns the topics the worker subscribes to.
func DefaultTopics() []string {
	return []string{TopicChargeSuccess, TopicPaymentVerified}
}
