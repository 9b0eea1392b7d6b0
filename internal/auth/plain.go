// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.4.2 "PLAIN: username-and-password exchange
// delegated to the SASL client."

package auth

import "fmt"

// PlainClient implements [SaslClient] for the PLAIN mechanism: a single
// round carrying "authzid\x00authcid\x00password".
type PlainClient struct {
	authzid, authcid, password string
	sent, complete             bool
}

// NewPlainClient returns a [*PlainClient] for cred.
func NewPlainClient(cred Credential) *PlainClient {
	return &PlainClient{authcid: cred.Username, password: cred.Password}
}

func (c *PlainClient) HasInitialResponse() bool { return true }

func (c *PlainClient) Next(challenge []byte) ([]byte, error) {
	if c.sent {
		return nil, fmt.Errorf("auth: plain mechanism does not expect a second round")
	}
	c.sent = true
	c.complete = true
	payload := []byte(c.authzid + "\x00" + c.authcid + "\x00" + c.password)
	return payload, nil
}

func (c *PlainClient) Complete() bool { return c.complete }

func (c *PlainClient) Dispose() { c.password = "" }
