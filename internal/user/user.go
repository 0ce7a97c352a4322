// Package user holds the account model and its storage port.
package user

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultStartingCoin is credited to every new account.
const DefaultStartingCoin int64 = 1_000_000

// User is an application account. Email is stored lowercased.
type User struct {
	ID            uuid.UUID
	Email         string
	EmailVerified bool
	Name          string
	Picture       string

	// OAuthType and ProviderUserID record the provider used for the most
	// recent login.
	OAuthType      string
	ProviderUserID string

	Coin        int64
	HighestCoin int64

	LastIP      string
	Country     string
	AdsID       string
	IsDeleted   bool
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAccount describes an account to be created on first login.
type NewAccount struct {
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
	OAuthType      string
	ProviderUserID string
	LastIP         string
	Country        string
	AdsID          string
	StartingCoin   int64
}

// New builds a user with fresh id, timestamps and starting balances.
func New(a NewAccount, now time.Time) *User {
	coin := a.StartingCoin
	if coin <= 0 {
		coin = DefaultStartingCoin
	}
	return &User{
		ID:             uuid.New(),
		Email:          strings.ToLower(strings.TrimSpace(a.Email)),
		EmailVerified:  a.EmailVerified,
		Name:           a.Name,
		Picture:        a.Picture,
		OAuthType:      a.OAuthType,
		ProviderUserID: a.ProviderUserID,
		Coin:           coin,
		HighestCoin:    coin,
		LastIP:         a.LastIP,
		Country:        a.Country,
		AdsID:          a.AdsID,
		LastLoginAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Profile is the client-facing view of a user. Balances are strings so
// clients never lose precision.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture,omitempty"`
	OAuthType   string `json:"oauthType,omitempty"`
	Coin        string `json:"coin"`
	HighestCoin string `json:"highestCoin"`
}

func (u *User) FormatResponse() Profile {
	return Profile{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Picture:     u.Picture,
		OAuthType:   u.OAuthType,
		Coin:        strconv.FormatInt(u.Coin, 10),
		HighestCoin: strconv.FormatInt(u.HighestCoin, 10),
	}
}
