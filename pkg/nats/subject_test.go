package nats

import (
	"testing"

	"casebook/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubjectMatchesStreamFilter(t *testing.T) {
	assert.Equal(t, "casebook.events.CASE_CREATED", Subject(events.CaseCreated))
	assert.Equal(t, "casebook.events.USER_SIGNED_IN", Subject(events.UserSignedIn))
}

func TestClosingNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, p.Close)

	var s *Subscriber
	assert.NotPanics(t, s.Close)
}
