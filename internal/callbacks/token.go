package callbacks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrBadToken     = errors.New("malformed callback token")
	ErrBadSignature = errors.New("callback token signature mismatch")
)

// Payload is the serialized context embedded in a callback token.
// The token is opaque to the platform that stores it; only this relay
// (holder of the HMAC key) can mint or verify one.
type Payload struct {
	ID       string         `json:"id"`
	TargetID string         `json:"target_id"`
	SinkName string         `json:"sink_name"`
	Action   string         `json:"action"`
	Text     string         `json:"text"`
	Context  map[string]any `json:"context,omitempty"`
}

// Signer mints and verifies signed callback tokens
type Signer struct {
	key      []byte
	targetID string
	sinkName string
}

func NewSigner(key []byte, targetID, sinkName string) *Signer {
	return &Signer{key: key, targetID: targetID, sinkName: sinkName}
}

// Issue builds a token for one (label, action) choice. The caller-supplied
// context is merged with the signer's target id and sink name.
func (s *Signer) Issue(action, text string, context map[string]any) (string, error) {
	p := Payload{
		ID:       uuid.New().String(),
		TargetID: s.targetID,
		SinkName: s.sinkName,
		Action:   action,
		Text:     text,
	}
	if len(context) > 0 {
		p.Context = make(map[string]any, len(context))
		for k, v := range context {
			p.Context[k] = v
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal callback payload: %w", err)
	}
	enc := base64.RawURLEncoding.EncodeToString(body)
	return enc + "." + s.sign(enc), nil
}

// Verify checks the signature and returns the embedded payload.
func (s *Signer) Verify(token string) (*Payload, error) {
	enc, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrBadToken
	}
	if !hmac.Equal([]byte(s.sign(enc)), []byte(sig)) {
		return nil, ErrBadSignature
	}
	body, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, ErrBadToken
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ErrBadToken
	}
	return &p, nil
}

func (s *Signer) sign(enc string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(enc))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
