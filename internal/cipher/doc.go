// Package cipher provides authenticated symmetric encryption for variable
// sets and history snapshots at rest.
//
// Encryption uses NaCl secretbox (XSalsa20-Poly1305) with a 32-byte key.
// Every ciphertext carries its own random 24-byte nonce as a prefix, so
// encrypting the same plaintext twice never produces the same output.
// Decryption authenticates before returning anything: tampered data, a
// truncated file, or the wrong key all surface errors.ErrIntegrity rather
// than garbage plaintext.
//
// Keys are provisioned explicitly. Load one from a base64 key file with
// ReadKeyFile, or derive one from a passphrase and salt with
// NewFromPassphrase (PBKDF2-SHA256). There is no global key state.
package cipher
