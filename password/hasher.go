package password

// Hasher produces Argon2id hashes and verifies both Argon2id and bcrypt
// encodings. Accounts imported from the legacy platform carry bcrypt hashes;
// they verify normally and always report NeedsUpgrade so the engine rehashes
// them on the next successful login.
type Hasher struct {
	argon *Argon2
}

// New returns a Hasher that issues Argon2id hashes with cfg.
func New(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: argon}, nil
}

// Hash always produces an Argon2id PHC string.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}
	return h.argon.Verify(password, encodedHash)
}

// NeedsUpgrade is true for every bcrypt hash and for Argon2id hashes with
// weaker parameters than the current configuration.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encodedHash)
}
