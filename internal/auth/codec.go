package auth

import "time"

type CodecConfig struct {
	Secret     []byte
	RequireExp bool
	Now        func() time.Time
}

// Codec binds the token functions to a process-wide secret and clock.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	cfg CodecConfig
}

func NewCodec(cfg CodecConfig) *Codec {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret
	return &Codec{cfg: cfg}
}

func (c *Codec) Mint(claims any) (string, error) {
	return Encode(claims, c.cfg.Secret)
}

func (c *Codec) Verify(token string) (Claims, error) {
	return decode(token, c.cfg.Secret, c.cfg.Now(), c.cfg.RequireExp)
}
