package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsActiveMember(t *testing.T) {
	today := time.Date(2025, time.June, 15, 14, 30, 0, 0, time.UTC)

	expiresToday := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	expiredYesterday := expiresToday.AddDate(0, 0, -1)
	expiresTomorrow := expiresToday.AddDate(0, 0, 1)

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"no expiry set", nil, false},
		{"expires today still counts", &expiresToday, true},
		{"expired yesterday", &expiredYesterday, false},
		{"expires tomorrow", &expiresTomorrow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MemberProfile{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, p.IsActiveMember(today))
		})
	}
}
