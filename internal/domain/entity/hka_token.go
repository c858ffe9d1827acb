package entity

import "time"

// HKAToken token bearer de HKA cacheado por empresa.
type HKAToken struct {
	CompanyID string
	Value     string
	ExpiresAt time.Time
}

// ValidAt informa si el token existe y no ha expirado en now.
func (t HKAToken) ValidAt(now time.Time) bool {
	return t.Value != "" && !t.ExpiresAt.IsZero() && now.Before(t.ExpiresAt)
}
