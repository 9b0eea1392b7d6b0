// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.4.2 "Native (legacy nonce): non-SASL two-step,
// request nonce, then submit an authentication hash of
// username+password+nonce." Implemented outside the SASL orchestrator
// since it is explicitly non-SASL; it still conforms to [SaslClient] so
// callers have one interface regardless of mechanism.

package auth

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
)

// NativeClient implements the legacy nonce-based authentication exchange
// as a two-round conversation shaped like a SASL client so it can share
// the orchestrator's command machinery, even though the wire commands it
// issues (getnonce / authenticate) are not themselves SASL commands.
type NativeClient struct {
	username, password string
	round              int
	complete           bool
}

// NewNativeClient returns a [*NativeClient] for cred.
func NewNativeClient(cred Credential) *NativeClient {
	return &NativeClient{username: cred.Username, password: cred.Password}
}

func (c *NativeClient) HasInitialResponse() bool { return false }

// Next treats challenge as the server-issued nonce on the second round;
// the first round has no input since the nonce has not been requested
// yet (the caller issues getnonce separately).
func (c *NativeClient) Next(challenge []byte) ([]byte, error) {
	c.round++
	switch c.round {
	case 1:
		return nil, nil
	case 2:
		if len(challenge) == 0 {
			return nil, errors.New("auth: native mechanism requires a nonce")
		}
		hash := authHash(c.username, c.password, string(challenge))
		c.complete = true
		return []byte(hash), nil
	default:
		return nil, errors.New("auth: native mechanism does not expect a third round")
	}
}

func (c *NativeClient) Complete() bool { return c.complete }

func (c *NativeClient) Dispose() { c.password = "" }

// authHash computes the legacy "key" field: md5(nonce + username +
// md5(username + ":mongo:" + password)).
func authHash(username, password, nonce string) string {
	userPass := md5Hex(username + ":mongo:" + password)
	return md5Hex(nonce + username + userPass)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
