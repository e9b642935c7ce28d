// Package auth turns incoming requests into a caller identity. The rest of
// the service only ever sees the user id; credentials stay in here.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnavailable means the identity provider could not be asked.
	ErrUnavailable = errors.New("auth provider unavailable")
)

// User is the normalized identity. Optional fields are nil when the provider
// did not send them.
type User struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexID(n.String())
	return nil
}

type providerUser struct {
	ID        flexID  `json:"id"`
	UserID    flexID  `json:"userId"`
	Email     *string `json:"email"`
	Name      *string `json:"name"`
	Image     *string `json:"image"`
	AvatarURL *string `json:"avatarUrl"`
}

// envelope covers every response shape the provider has been seen to use.
type envelope struct {
	User *providerUser `json:"user"`
	Data *struct {
		User *providerUser `json:"user"`
	} `json:"data"`
	Session *struct {
		User   *providerUser `json:"user"`
		UserID flexID        `json:"userId"`
	} `json:"session"`
}

// NormalizeUser extracts one user from a provider response in a fixed order.
//
// The user record is the first present of:
//  1. user
//  2. data.user
//  3. session.user
//
// The id is the first non-empty of record.id, record.userId, session.userId.
// The picture is record.image, else record.avatarUrl.
//
// A response without an id yields ErrUnauthenticated.
func NormalizeUser(raw []byte) (*User, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed session response: %v", ErrUnauthenticated, err)
	}

	var rec *providerUser
	switch {
	case env.User != nil:
		rec = env.User
	case env.Data != nil && env.Data.User != nil:
		rec = env.Data.User
	case env.Session != nil && env.Session.User != nil:
		rec = env.Session.User
	}
	if rec == nil {
		rec = &providerUser{}
	}

	id := string(rec.ID)
	if id == "" {
		id = string(rec.UserID)
	}
	if id == "" && env.Session != nil {
		id = string(env.Session.UserID)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: session carries no user id", ErrUnauthenticated)
	}

	u := &User{ID: id, Email: rec.Email, Name: rec.Name, Image: rec.Image}
	if u.Image == nil {
		u.Image = rec.AvatarURL
	}

	if u.Email != nil {
		if _, err := mail.ParseAddress(*u.Email); err != nil {
			return nil, fmt.Errorf("%w: invalid email %q", ErrUnauthenticated, *u.Email)
		}
	}
	if u.Image != nil {
		if parsed, err := url.Parse(*u.Image); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: invalid image url %q", ErrUnauthenticated, *u.Image)
		}
	}
	return u, nil
}
