// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.4.2 SCRAM-SHA-1/SCRAM-SHA-256 mechanism
// specifics; PBKDF2 key derivation and SASLprep normalization wired per
// SPEC_FULL.md §2.B from nabbar-golib's golang.org/x/crypto and
// golang.org/x/text usage.

// Package scram implements the SCRAM-SHA-1 and SCRAM-SHA-256 client
// conversation (§4.4.2), including the minimum-iteration-count guard and
// the optional key-material cache.
package scram

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"
)

// minIterations is the floor below which a server-supplied iteration
// count is rejected outright (§4.4.2).
const minIterations = 4096

// HashName selects the underlying hash algorithm.
type HashName string

const (
	SHA1   HashName = "SHA-1"
	SHA256 HashName = "SHA-256"
)

func (h HashName) new() func() hash.Hash {
	if h == SHA256 {
		return sha256.New
	}
	return sha1.New
}

// KeyCache caches derived client/server key material keyed by the
// password+salt+iteration inputs that determine it, avoiding repeated
// PBKDF2 derivations against the same server (§2.B).
type KeyCache interface {
	Get(hashedPasswordAndSalt, salt string, iterations int) (clientKey, serverKey []byte, ok bool)
	Put(hashedPasswordAndSalt, salt string, iterations int, clientKey, serverKey []byte)
}

// Client drives a single SCRAM conversation to completion.
type Client struct {
	hash        HashName
	username    string
	password    string
	clientNonce string
	cache       KeyCache

	step int

	clientFirstBare string
	serverFirst     string
	clientKey       []byte
	serverKey       []byte
	complete        bool
}

// NewClient returns a [*Client] for username/password, using clientNonce
// as the client-generated nonce (callers supply it so tests can be
// deterministic; production callers should pass cryptographically random
// bytes, base64-encoded).
func NewClient(h HashName, username, password, clientNonce string, cache KeyCache) *Client {
	return &Client{hash: h, username: username, password: password, clientNonce: clientNonce, cache: cache}
}

func (c *Client) HasInitialResponse() bool { return true }

func (c *Client) Complete() bool { return c.complete }

func (c *Client) Dispose() {
	c.password = ""
	c.clientKey = nil
	c.serverKey = nil
}

// escapeUsername applies the SCRAM username escaping rule: "=" -> "=3D",
// "," -> "=2C" (§4.4.2).
func escapeUsername(u string) string {
	u = strings.ReplaceAll(u, "=", "=3D")
	u = strings.ReplaceAll(u, ",", "=2C")
	return u
}

// Next advances the conversation. Round 1 has no challenge (the initial
// response); round 2 receives the server's first message; round 3
// receives the server's final message (containing "v=...").
func (c *Client) Next(challenge []byte) ([]byte, error) {
	c.step++
	switch c.step {
	case 1:
		return c.clientFirstMessage(), nil
	case 2:
		return c.clientFinalMessage(string(challenge))
	case 3:
		if err := c.verifyServerSignature(string(challenge)); err != nil {
			return nil, err
		}
		c.complete = true
		return []byte{}, nil
	default:
		return nil, errors.New("scram: unexpected round")
	}
}

func (c *Client) clientFirstMessage() []byte {
	c.clientFirstBare = fmt.Sprintf("n=%s,r=%s", escapeUsername(c.username), c.clientNonce)
	return []byte("n,," + c.clientFirstBare)
}

// parsedServerFirst holds the fields of the server's first SCRAM message.
type parsedServerFirst struct {
	nonce      string
	salt       []byte
	iterations int
}

func parseServerFirst(msg, clientNonce string) (parsedServerFirst, error) {
	fields := splitFields(msg)
	r, ok := fields["r"]
	if !ok || !strings.HasPrefix(r, clientNonce) {
		return parsedServerFirst{}, errors.New("scram: server nonce does not extend client nonce")
	}
	saltB64, ok := fields["s"]
	if !ok {
		return parsedServerFirst{}, errors.New("scram: missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return parsedServerFirst{}, fmt.Errorf("scram: invalid salt encoding: %w", err)
	}
	iterStr, ok := fields["i"]
	if !ok {
		return parsedServerFirst{}, errors.New("scram: missing iteration count")
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil {
		return parsedServerFirst{}, fmt.Errorf("scram: invalid iteration count: %w", err)
	}
	if iterations < minIterations {
		return parsedServerFirst{}, fmt.Errorf("scram: iteration count %d below minimum %d", iterations, minIterations)
	}
	return parsedServerFirst{nonce: r, salt: salt, iterations: iterations}, nil
}

func splitFields(msg string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if i := strings.IndexByte(part, '='); i >= 0 {
			fields[part[:i]] = part[i+1:]
		}
	}
	return fields
}

// normalize applies SASLprep to password for SCRAM-SHA-256 (§4.4.2); for
// SCRAM-SHA-1 no normalization is applied.
func (c *Client) normalize(password string) string {
	if c.hash != SHA256 {
		return password
	}
	out, err := precis.OpaqueString.String(password)
	if err != nil {
		return password // fall back to the raw password rather than fail closed on unusual input
	}
	return out
}

func (c *Client) clientFinalMessage(serverFirst string) ([]byte, error) {
	c.serverFirst = serverFirst
	parsed, err := parseServerFirst(serverFirst, c.clientNonce)
	if err != nil {
		return nil, err
	}

	newHash := c.hash.new()
	saltKey := base64.StdEncoding.EncodeToString(parsed.salt)
	hashedPasswordAndSalt := hashPasswordForCacheKey(c.normalize(c.password))

	var clientKey, serverKey []byte
	if c.cache != nil {
		if ck, sk, ok := c.cache.Get(hashedPasswordAndSalt, saltKey, parsed.iterations); ok {
			clientKey, serverKey = ck, sk
		}
	}
	if clientKey == nil {
		saltedPassword := pbkdf2.Key([]byte(c.normalize(c.password)), parsed.salt, parsed.iterations, newHash().Size(), newHash)
		clientKey = hmacSum(newHash, saltedPassword, "Client Key")
		serverKey = hmacSum(newHash, saltedPassword, "Server Key")
		if c.cache != nil {
			c.cache.Put(hashedPasswordAndSalt, saltKey, parsed.iterations, clientKey, serverKey)
		}
	}
	c.clientKey = clientKey
	c.serverKey = serverKey

	clientFinalWithoutProof := fmt.Sprintf("c=biws,r=%s", parsed.nonce)
	authMessage := c.clientFirstBare + "," + c.serverFirst + "," + clientFinalWithoutProof

	storedKey := hashSum(newHash, clientKey)
	clientSignature := hmacSum(newHash, storedKey, authMessage)
	clientProof := xorBytes(clientKey, clientSignature)

	final := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(final), nil
}

func (c *Client) verifyServerSignature(serverFinal string) error {
	fields := splitFields(serverFinal)
	vB64, ok := fields["v"]
	if !ok {
		return errors.New("scram: server final message missing signature")
	}
	v, err := base64.StdEncoding.DecodeString(vB64)
	if err != nil {
		return fmt.Errorf("scram: invalid server signature encoding: %w", err)
	}

	newHash := c.hash.new()
	clientFinalWithoutProof := fmt.Sprintf("c=biws,r=%s", mustFieldR(c.serverFirst, c.clientNonce))
	authMessage := c.clientFirstBare + "," + c.serverFirst + "," + clientFinalWithoutProof
	expected := hmacSum(newHash, c.serverKey, authMessage)

	if subtle.ConstantTimeCompare(expected, v) != 1 {
		return errors.New("scram: server signature mismatch")
	}
	return nil
}

func mustFieldR(serverFirst, clientNonce string) string {
	fields := splitFields(serverFirst)
	return fields["r"]
}

func hmacSum(newHash func() hash.Hash, key []byte, data string) []byte {
	mac := hmac.New(newHash, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashSum(newHash func() hash.Hash, data []byte) []byte {
	h := newHash()
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// hashPasswordForCacheKey derives a stable, non-reversible cache-key
// component from a normalized password without storing the password
// itself in the cache key.
func hashPasswordForCacheKey(password string) string {
	h := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(h[:])
}

// SaslStartOptions returns the SCRAM-SHA-256 {options:{skipEmptyExchange:
// true}} addendum (§4.4.2); SCRAM-SHA-1 has no such addendum.
func (c *Client) SaslStartOptions() (key string, value any, ok bool) {
	if c.hash != SHA256 {
		return "", nil, false
	}
	return "options", map[string]any{"skipEmptyExchange": true}, true
}
