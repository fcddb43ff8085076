package domain_test

import (
	"testing"
	"time"

	"github.com/Amund211/coursesync/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCredentialsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{name: "no expiry", expiresAt: time.Time{}, expired: false},
		{name: "future", expiresAt: now.Add(time.Minute), expired: false},
		{name: "exactly now", expiresAt: now, expired: true},
		{name: "past", expiresAt: now.Add(-time.Minute), expired: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			creds := domain.Credentials{Token: "token", ExpiresAt: c.expiresAt}
			require.Equal(t, c.expired, creds.Expired(now))
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, kind := range domain.AllKinds {
		parsed, err := domain.ParseKind(string(kind))
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}

	_, err := domain.ParseKind("players")
	require.ErrorIs(t, err, domain.ErrInvalidParams)
}
